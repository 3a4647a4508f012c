package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"topicscanner/internal/domain"
	"topicscanner/internal/ports"
)

// Client talks to the external classification service, which maps a raw
// query onto a content source and category.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Classifier = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Classify sends the query for source/category suggestion.
func (c *Client) Classify(ctx context.Context, query string) (ports.ClassifyResult, error) {
	payload := map[string]any{"query": query}

	body, err := json.Marshal(payload)
	if err != nil {
		return ports.ClassifyResult{}, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/classify", bytes.NewReader(body))
	if err != nil {
		return ports.ClassifyResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.ClassifyResult{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.ClassifyResult{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var parsed struct {
		Source            string  `json:"source"`
		SourceType        string  `json:"sourceType"`
		SuggestedCategory string  `json:"suggestedCategory"`
		Confidence        float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ports.ClassifyResult{}, fmt.Errorf("decode response: %w", err)
	}

	result := ports.ClassifyResult{
		Source:            parsed.Source,
		SuggestedCategory: parsed.SuggestedCategory,
		Confidence:        parsed.Confidence,
	}
	switch parsed.SourceType {
	case string(domain.TypeCommunity):
		result.SourceType = domain.TypeCommunity
	default:
		result.SourceType = domain.TypeResearch
	}
	return result, nil
}
