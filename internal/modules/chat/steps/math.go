package steps

import (
	"math"
	"strings"
	"unicode/utf8"
)

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < len(a); i++ {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// estimateTokens is the crude ~4 chars/token estimate used everywhere a
// budget is enforced. Floor division keeps the estimate conservative.
func estimateTokens(s string) int {
	return len(s) / 4
}

// truncateToTokens cuts s so estimateTokens(result) <= budget, backing off
// to a rune boundary so the cut never splits a character.
func truncateToTokens(s string, budget int) string {
	if budget <= 0 {
		return ""
	}
	max := budget * 4
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func trimToChars(s string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" || n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
