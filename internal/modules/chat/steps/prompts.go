package steps

import (
	"fmt"
	"strings"
)

func queryExpansionPrompt(query string) (string, string) {
	system := `You generate search expansion terms for retrieval over study material.
Return only a comma-separated list of terms. No numbering, no explanations.`
	user := fmt.Sprintf(`Query: %s

List up to %d short search terms (synonyms, related phrasings, key entities)
that would help find passages answering this query.`, query, maxExpansionTerms)
	return system, user
}

func queryRewritePrompt(query, history string) (string, string) {
	system := `You rewrite a follow-up question so it stands alone without the conversation.
Return only the rewritten question, one line, nothing else.`
	user := fmt.Sprintf(`Conversation so far:
%s

Follow-up question: %s

Rewrite the follow-up as a single standalone question that keeps its meaning.`, history, query)
	return system, user
}

func answerSystemPrompt(level string) string {
	return fmt.Sprintf(`You answer questions strictly from the provided context segments.
Cite every claim with the segment it came from, like [Segment 2]. Combine
segments when needed, citing each. If the context does not contain the
answer, say so plainly instead of guessing.
%s`, depthHint(level))
}

func answerUserPrompt(history, blocks, query string) string {
	var b strings.Builder
	if history != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(history)
		b.WriteString("\n\n")
	}
	b.WriteString(blocks)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	return b.String()
}

func webAnswerPrompt(results, query string) (string, string) {
	system := `You answer questions from web search results when the user's own material
has nothing relevant. Stick to the results, cite them like [Result 1], and
note that the answer comes from the web rather than uploaded material.`
	user := fmt.Sprintf(`Web results:
%s

Question: %s`, results, query)
	return system, user
}

func depthHint(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "beginner":
		return "Explain from first principles. Define every term the first time it appears and prefer everyday analogies."
	case "advanced":
		return "Be precise and technical. Skip basic definitions and address nuances and edge cases directly."
	default:
		return "Assume basic familiarity with the subject. Focus on how things work and why."
	}
}
