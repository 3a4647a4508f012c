package domain

import (
	"errors"
	"time"
)

// Status enumerates pipeline lifecycle states for an analysis.
type Status string

const (
	StatusPending           Status = "PENDING"
	StatusClassifying       Status = "CLASSIFYING"
	StatusFetchingArticles  Status = "FETCHING_ARTICLES"
	StatusEmbeddingArticles Status = "EMBEDDING_ARTICLES"
	StatusDiscoveringTopics Status = "DISCOVERING_TOPICS"
	StatusCompleted         Status = "COMPLETED"
	StatusFailed            Status = "FAILED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Rank maps a status onto the forward pipeline path so pollers can verify
// monotonic progress. FAILED shares the terminal rank with COMPLETED.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusClassifying:
		return 1
	case StatusFetchingArticles:
		return 2
	case StatusEmbeddingArticles:
		return 3
	case StatusDiscoveringTopics:
		return 4
	case StatusCompleted, StatusFailed:
		return 5
	}
	return -1
}

// AnalysisType distinguishes research sources from community sources.
type AnalysisType string

const (
	TypeResearch  AnalysisType = "research"
	TypeCommunity AnalysisType = "community"
)

// Analysis is one end-to-end pipeline run for a single user query.
type Analysis struct {
	ID                     string
	Query                  string
	Type                   AnalysisType
	Status                 Status
	FeedURL                string
	TotalArticlesProcessed int
	FailureReason          string
	CreatedAt              time.Time
	Topics                 []Topic
}

// Topic is a cluster of semantically related articles with a generated
// title, description, and 0-100 relevance score. Immutable after creation.
type Topic struct {
	ID           string
	AnalysisID   string
	Title        string
	Description  string
	ArticleCount int
	Relevance    int
	Centroid     []float64
	Articles     []Article
}

var (
	// ErrInvalidRequest rejects empty or malformed submissions before any
	// persistence occurs.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound signals an unknown analysis id on read or delete.
	ErrNotFound = errors.New("analysis not found")
)
