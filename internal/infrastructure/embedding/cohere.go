package embedding

import (
	"context"
	"errors"
	"fmt"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"

	"topicscanner/internal/ports"
)

// cohereBatchSize bounds one Embed API call; the API rejects larger batches.
const cohereBatchSize = 96

// CohereEmbedder implements the embedder contract against the Cohere Embed
// API for deployments without a dedicated embedding service.
type CohereEmbedder struct {
	client *cohereclient.Client
	model  string
}

var _ ports.Embedder = (*CohereEmbedder)(nil)

// NewCohereEmbedder builds a client for the given API key and model.
func NewCohereEmbedder(apiKey, model string) *CohereEmbedder {
	if model == "" {
		model = "embed-english-v3.0"
	}
	return &CohereEmbedder{
		client: cohereclient.NewClient(cohereclient.WithToken(apiKey)),
		model:  model,
	}
}

// Embed requests float embeddings in bounded batches, one vector per input.
func (c *CohereEmbedder) Embed(ctx context.Context, ids []string, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	if len(ids) != len(texts) {
		return nil, fmt.Errorf("ids/texts length mismatch: %d vs %d", len(ids), len(texts))
	}

	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += cohereBatchSize {
		end := start + cohereBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := c.client.V2.Embed(ctx, &cohere.V2EmbedRequest{
			Texts:          texts[start:end],
			Model:          c.model,
			InputType:      cohere.EmbedInputTypeSearchDocument,
			EmbeddingTypes: []cohere.EmbeddingType{cohere.EmbeddingTypeFloat},
		})
		if err != nil {
			return nil, fmt.Errorf("cohere embed: %w", err)
		}
		if resp == nil || resp.Embeddings == nil || resp.Embeddings.Float == nil {
			return nil, errors.New("cohere embed returned no float embeddings")
		}

		batch := resp.Embeddings.Float
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(batch), end-start)
		}
		out = append(out, batch...)
	}
	return out, nil
}
