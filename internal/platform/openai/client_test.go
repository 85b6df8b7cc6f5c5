package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/yungbote/studypath-backend/internal/pkg/logger"
)

func TestEmbedRestoresInputOrder(t *testing.T) {
	var captured map[string]any
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/embeddings" {
			t.Fatalf("path: want=%q got=%q", "/v1/embeddings", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("auth header: got=%q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		// Indices deliberately out of order.
		return jsonResponse(t, http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float64{0.4, 0.5}},
				{"index": 0, "embedding": []float64{0.1, 0.2}},
			},
		}), nil
	})

	vecs, err := c.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("vectors length: want=2 got=%d", len(vecs))
	}
	if vecs[0][0] != 0.1 || vecs[1][0] != 0.4 {
		t.Fatalf("order not restored: got=%v", vecs)
	}

	if captured["model"] != "text-embedding-3-small" {
		t.Fatalf("model: got=%v", captured["model"])
	}
	inputs, ok := captured["input"].([]any)
	if !ok || len(inputs) != 2 {
		t.Fatalf("input: got=%v", captured["input"])
	}
}

func TestEmbedCountMismatchErrors(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"index": 0, "embedding": []float64{0.1, 0.2}},
			},
		}), nil
	})

	_, err := c.Embed(context.Background(), []string{"first", "second"})
	if err == nil {
		t.Fatalf("expected count mismatch error")
	}
	if !strings.Contains(err.Error(), "count mismatch") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEmbedDimensionMismatchErrors(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"index": 0, "embedding": []float64{0.1, 0.2}},
				{"index": 1, "embedding": []float64{0.1, 0.2, 0.3}},
			},
		}), nil
	})

	_, err := c.Embed(context.Background(), []string{"first", "second"})
	if err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
	if !strings.Contains(err.Error(), "dimension mismatch") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEmbedRetriesOnTooManyRequests(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		attempts++
		if attempts == 1 {
			return jsonResponse(t, http.StatusTooManyRequests, map[string]any{
				"error": map[string]any{"message": "rate limited"},
			}), nil
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"data": []map[string]any{
				{"index": 0, "embedding": []float64{0.1, 0.2}},
			},
		}), nil
	})

	vecs, err := c.Embed(context.Background(), []string{"only"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts: want=2 got=%d", attempts)
	}
	if len(vecs) != 1 {
		t.Fatalf("vectors length: want=1 got=%d", len(vecs))
	}
}

func TestGenerateJSONSchemaFormat(t *testing.T) {
	var captured map[string]any
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/responses" {
			t.Fatalf("path: want=%q got=%q", "/v1/responses", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"output": []map[string]any{
				{
					"type": "message",
					"role": "assistant",
					"content": []map[string]any{
						{"type": "output_text", "text": `{"concepts":[{"title":"Chain rule"}]}`},
					},
				},
			},
		}), nil
	})

	schema := map[string]any{"type": "object"}
	obj, err := c.GenerateJSON(context.Background(), "sys", "user", "concept_list", schema)
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if _, ok := obj["concepts"]; !ok {
		t.Fatalf("parsed object missing concepts: %v", obj)
	}

	text, ok := captured["text"].(map[string]any)
	if !ok {
		t.Fatalf("text block: got=%T", captured["text"])
	}
	format, ok := text["format"].(map[string]any)
	if !ok {
		t.Fatalf("format block: got=%T", text["format"])
	}
	if format["type"] != "json_schema" || format["name"] != "concept_list" {
		t.Fatalf("format: got=%v", format)
	}
	if format["strict"] != true {
		t.Fatalf("strict: got=%v", format["strict"])
	}
	if captured["temperature"] == nil {
		t.Fatalf("temperature should be set by default")
	}
}

func TestGenerateTextRetriesWithoutTemperature(t *testing.T) {
	attempts := 0
	var second map[string]any
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		attempts++
		if attempts == 1 {
			return jsonResponse(t, http.StatusBadRequest, map[string]any{
				"error": map[string]any{
					"message": "Unsupported parameter: 'temperature' is not supported with this model.",
				},
			}), nil
		}
		if err := json.NewDecoder(r.Body).Decode(&second); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"output": []map[string]any{
				{
					"type": "message",
					"role": "assistant",
					"content": []map[string]any{
						{"type": "output_text", "text": "fine"},
					},
				},
			},
		}), nil
	})

	text, err := c.GenerateText(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "fine" {
		t.Fatalf("text: got=%q", text)
	}
	if attempts != 2 {
		t.Fatalf("attempts: want=2 got=%d", attempts)
	}
	if _, exists := second["temperature"]; exists {
		t.Fatalf("second request must omit temperature: %v", second["temperature"])
	}
}

func TestGenerateTextRefusal(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{
			"output":  []map[string]any{},
			"refusal": "cannot help with that",
		}), nil
	})

	_, err := c.GenerateText(context.Background(), "sys", "user")
	if err == nil || !strings.Contains(err.Error(), "refused") {
		t.Fatalf("expected refusal error, got %v", err)
	}
}

func newTestClient(t *testing.T, roundTrip func(*http.Request) (*http.Response, error)) *client {
	t.Helper()
	temp := 0.2
	return &client{
		log:        logger.NewNop(),
		baseURL:    "http://openai.local",
		apiKey:     "test-key",
		model:      "gpt-5.2",
		embedModel: "text-embedding-3-small",
		httpClient: &http.Client{
			Transport: roundTripFunc(roundTrip),
		},
		maxRetries:  2,
		temperature: &temp,
	}
}

func jsonResponse(t *testing.T, status int, payload any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
