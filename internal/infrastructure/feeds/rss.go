package feeds

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"

	"topicscanner/internal/domain"
	"topicscanner/internal/scanner"
)

// RSSScanner handles generic RSS/Atom feeds, including subreddit feeds.
type RSSScanner struct {
	parser *gofeed.Parser
}

// NewRSSScanner builds the generic feed strategy.
func NewRSSScanner() *RSSScanner {
	return &RSSScanner{parser: gofeed.NewParser()}
}

// Name identifies the strategy inside the registry.
func (r *RSSScanner) Name() string {
	return "rss"
}

// Scan fetches the feed as-is and returns up to req.Limit entries.
func (r *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Document, int, error) {
	feed, err := r.parser.ParseURLWithContext(req.FeedURL, ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch feed: %w", err)
	}

	docs := itemsToDocuments(feed.Items, req.Limit)
	return docs, len(feed.Items), nil
}
