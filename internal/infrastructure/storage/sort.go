package storage

import (
	"sort"

	"topicscanner/internal/domain"
)

// sortTopics orders topics by relevance, then article count, then title.
// It runs after article counts are recomputed from live associations so the
// tie-break always agrees with the counts actually returned.
func sortTopics(topics []domain.Topic) {
	sort.Slice(topics, func(i, j int) bool {
		a, b := topics[i], topics[j]
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		if a.ArticleCount != b.ArticleCount {
			return a.ArticleCount > b.ArticleCount
		}
		return a.Title < b.Title
	})
}
