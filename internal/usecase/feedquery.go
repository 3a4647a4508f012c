package usecase

import (
	"net/url"
	"strings"

	"topicscanner/internal/domain"
	"topicscanner/internal/ports"
)

// buildFeedURL derives the feed descriptor sent to the fetch collaborator
// from a classification result. An already-qualified advanced query (or a
// full URL) passes through verbatim; a bare category is wrapped into the
// collaborator's expected query syntax. Pure and side-effect free.
func buildFeedURL(arxivAPIURL, redditBaseURL string, result ports.ClassifyResult) string {
	category := strings.TrimSpace(result.SuggestedCategory)

	if strings.HasPrefix(category, "http://") || strings.HasPrefix(category, "https://") {
		return category
	}

	if result.SourceType == domain.TypeCommunity {
		if category == "" {
			category = "MachineLearning"
		}
		return strings.TrimSuffix(redditBaseURL, "/") + "/r/" + category + "/.rss"
	}

	expr := category
	if expr == "" {
		expr = "cs.AI"
	}
	if !strings.Contains(expr, ":") {
		// Bare category, wrap it into arXiv query syntax.
		expr = "cat:" + expr
	}
	return arxivAPIURL + "?search_query=" + url.QueryEscape(expr)
}
