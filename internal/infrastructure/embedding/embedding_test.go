package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientEmbed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body struct {
			Texts []string `json:"texts"`
			IDs   []string `json:"ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(body.Texts) != 2 || len(body.IDs) != 2 {
			t.Errorf("unexpected batch: %v / %v", body.Texts, body.IDs)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings":  [][]float64{{0.1, 0.2}, {0.3, 0.4}},
			"cachedCount": 1,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	vectors, err := client.Embed(context.Background(), []string{"a", "b"}, []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if vectors[1][1] != 0.4 {
		t.Fatalf("unexpected vector value: %v", vectors[1])
	}
}

func TestClientEmbedCountMismatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float64{{0.1}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	if _, err := client.Embed(context.Background(), []string{"a", "b"}, []string{"x", "y"}); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestClientEmbedEmptyBatch(t *testing.T) {
	t.Parallel()

	client := NewClient("http://unused.invalid", "")
	vectors, err := client.Embed(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if len(vectors) != 0 {
		t.Fatalf("expected empty result, got %d", len(vectors))
	}
}

func TestCacheWithoutRedisDelegates(t *testing.T) {
	t.Parallel()

	inner := &stubEmbedder{vectors: [][]float64{{1, 2}}}
	cache := NewCache(inner, nil, 0, nil)

	vectors, err := cache.Embed(context.Background(), []string{"id"}, []string{"text"})
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if len(vectors) != 1 || vectors[0][0] != 1 {
		t.Fatalf("unexpected result: %v", vectors)
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.calls)
	}
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	if got := cacheKey("abs/2501.00001"); got != "topicscanner:embedding:abs/2501.00001" {
		t.Fatalf("unexpected cache key: %q", got)
	}
}

type stubEmbedder struct {
	vectors [][]float64
	calls   int
}

func (s *stubEmbedder) Embed(_ context.Context, ids []string, _ []string) ([][]float64, error) {
	s.calls++
	out := make([][]float64, len(ids))
	for i := range ids {
		out[i] = s.vectors[i%len(s.vectors)]
	}
	return out, nil
}
