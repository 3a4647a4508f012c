package ports

import (
	"context"

	"topicscanner/internal/domain"
)

// ClassifyResult is the typed payload returned by the classification
// collaborator for a raw query.
type ClassifyResult struct {
	Source            string
	SourceType        domain.AnalysisType
	SuggestedCategory string
	Confidence        float64
}

// Classifier maps a free-text query onto a content source and category.
type Classifier interface {
	Classify(ctx context.Context, query string) (ClassifyResult, error)
}

// FetchRequest carries everything a source strategy needs to pull documents.
type FetchRequest struct {
	Source   string
	Category string
	Query    string
	FeedURL  string
	Limit    int
}

// FetchResult is the bounded document batch returned by a source.
type FetchResult struct {
	Articles   []domain.Document
	TotalFound int
	Source     string
}

// ArticleSource pulls a bounded list of documents for a resolved feed
// descriptor. Implementations must return stable external ids.
type ArticleSource interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)
}

// Embedder turns document texts into fixed-dimension dense vectors, one per
// input, aligned by index. Ids allow providers to cache by external id.
type Embedder interface {
	Embed(ctx context.Context, ids []string, texts []string) ([][]float64, error)
}

// AnalysisRepository is the durable store for analyses, topics, articles and
// their associations. All writes are idempotent: re-running a write for an
// identity that already exists is a no-op, not an error.
type AnalysisRepository interface {
	// Create persists a PENDING stub so immediate status polls never miss.
	Create(ctx context.Context, analysis *domain.Analysis) error

	// UpdateStatus records a pipeline-stage transition.
	UpdateStatus(ctx context.Context, id string, status domain.Status) error

	// MarkFailed moves the analysis to FAILED and records the cause.
	MarkFailed(ctx context.Context, id string, reason string) error

	// SetClassification stores the classified type and resolved feed URL.
	SetClassification(ctx context.Context, id string, typ domain.AnalysisType, feedURL string) error

	// SaveResults commits topics, shared articles, their associations, the
	// processed-article count, and the COMPLETED status as one atomic unit.
	SaveResults(ctx context.Context, id string, topics []domain.Topic, processed int) error

	// Get hydrates an analysis with its topics and each topic's articles.
	// Article counts are recomputed from live associations, never trusted
	// from a stored value.
	Get(ctx context.Context, id string) (*domain.Analysis, error)

	// List returns summary rows ordered by creation time descending, plus
	// the total row count.
	List(ctx context.Context, limit, offset int) ([]domain.Analysis, int, error)

	// Delete removes the analysis, its topics and topic-article
	// associations. Shared article rows stay untouched.
	Delete(ctx context.Context, id string) error
}
