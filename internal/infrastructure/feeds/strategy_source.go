package feeds

import (
	"context"
	"fmt"
	"log/slog"

	"topicscanner/internal/ports"
	"topicscanner/internal/scanner"
)

// StrategySource implements ArticleSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry.
func NewStrategySource(reg *scanner.Registry, log *slog.Logger) *StrategySource {
	return &StrategySource{registry: reg, logger: log}
}

// Fetch resolves the strategy named by the request and executes it. Unknown
// sources with a feed URL fall back to the generic RSS strategy.
func (s *StrategySource) Fetch(ctx context.Context, req ports.FetchRequest) (ports.FetchResult, error) {
	if s.registry == nil {
		return ports.FetchResult{}, fmt.Errorf("scanner registry is not configured")
	}

	name := req.Source
	strategy, err := s.registry.Resolve(name)
	if err != nil && req.FeedURL != "" {
		name = "rss"
		strategy, err = s.registry.Resolve(name)
	}
	if err != nil {
		return ports.FetchResult{}, fmt.Errorf("source %s: %w", req.Source, err)
	}

	s.debug("fetch start", "source", name, "feed_url", req.FeedURL, "limit", req.Limit)

	docs, total, err := strategy.Scan(ctx, scanner.Request{
		Query:    req.Query,
		Category: req.Category,
		FeedURL:  req.FeedURL,
		Limit:    req.Limit,
	})
	if err != nil {
		return ports.FetchResult{}, fmt.Errorf("scan source %s: %w", name, err)
	}

	s.debug("fetch done", "source", name, "articles", len(docs), "total_found", total)
	return ports.FetchResult{Articles: docs, TotalFound: total, Source: name}, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
