package domain

import "time"

// Article is a single source document with a source-stable external id.
// Articles are deduplicated globally by ExternalID: the same document fetched
// across multiple analyses is stored once and shared between topics.
type Article struct {
	ID          string
	ExternalID  string
	Title       string
	Link        string
	Snippet     string
	Embedding   []float64
	PublishedAt time.Time
}

// Document pairs a fetched article with the text handed to the embedding and
// clustering stages.
type Document struct {
	ExternalID string
	Title      string
	Text       string
	Link       string
	Snippet    string
	Embedding  []float64
}
