package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
)

// Result is one external hit the answer assembler can cite when the
// user's own materials have nothing relevant.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type Client interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Enabled() bool
}

// NewFromEnv returns a client against a SearxNG-compatible JSON endpoint
// when WEBSEARCH_URL is set, and a disabled noop otherwise.
func NewFromEnv(log *logger.Logger) Client {
	base := strings.TrimRight(strings.TrimSpace(envutil.String("WEBSEARCH_URL", "")), "/")
	if base == "" {
		return noopClient{}
	}
	return &httpClient{
		log:     log.With("service", "websearch.Client"),
		baseURL: base,
		client:  &http.Client{Timeout: envutil.Seconds("WEBSEARCH_TIMEOUT_SECONDS", 10*time.Second)},
	}
}

type noopClient struct{}

func (noopClient) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	return nil, nil
}

func (noopClient) Enabled() bool { return false }

type httpClient struct {
	log     *logger.Logger
	baseURL string
	client  *http.Client
}

func (c *httpClient) Enabled() bool { return true }

func (c *httpClient) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read websearch response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("websearch status %d: %s", resp.StatusCode, firstN(string(body), 300))
	}

	var payload struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode websearch response: %w", err)
	}

	out := make([]Result, 0, limit)
	for _, r := range payload.Results {
		title := strings.TrimSpace(r.Title)
		u := strings.TrimSpace(r.URL)
		if title == "" || u == "" {
			continue
		}
		out = append(out, Result{
			Title:   title,
			URL:     u,
			Snippet: strings.TrimSpace(r.Content),
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
