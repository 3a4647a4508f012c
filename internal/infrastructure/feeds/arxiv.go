package feeds

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"topicscanner/internal/domain"
	"topicscanner/internal/scanner"
)

const snippetLimit = 500

// ArxivScanner pulls documents from the arXiv Atom API.
type ArxivScanner struct {
	parser *gofeed.Parser
}

// NewArxivScanner builds the Atom API strategy.
func NewArxivScanner() *ArxivScanner {
	return &ArxivScanner{parser: gofeed.NewParser()}
}

// Name identifies the strategy inside the registry.
func (a *ArxivScanner) Name() string {
	return "arxiv"
}

// Scan fetches up to req.Limit entries from the resolved feed URL, appending
// paging parameters the arXiv API expects.
func (a *ArxivScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Document, int, error) {
	feedURL, err := withArxivParams(req.FeedURL, req.Limit)
	if err != nil {
		return nil, 0, err
	}

	feed, err := a.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch arxiv feed: %w", err)
	}

	docs := itemsToDocuments(feed.Items, req.Limit)
	return docs, len(feed.Items), nil
}

func withArxivParams(base string, limit int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid feed url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("start", "0")
	query.Set("max_results", strconv.Itoa(limit))
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "descending")
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// itemsToDocuments maps feed items onto pipeline documents with stable
// external ids, deduplicating within the batch.
func itemsToDocuments(items []*gofeed.Item, limit int) []domain.Document {
	docs := make([]domain.Document, 0, len(items))
	seen := map[string]struct{}{}
	for _, item := range items {
		if len(docs) >= limit {
			break
		}

		id := item.GUID
		if id == "" {
			id = item.Link
		}
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		summary = strings.TrimSpace(summary)

		doc := domain.Document{
			ExternalID: id,
			Title:      strings.TrimSpace(item.Title),
			Text:       strings.TrimSpace(item.Title + ". " + summary),
			Link:       item.Link,
			Snippet:    truncate(summary, snippetLimit),
		}
		docs = append(docs, doc)
	}
	return docs
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}
