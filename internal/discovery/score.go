package discovery

import (
	"math"
	"sort"

	"topicscanner/internal/domain"
)

// sizeWeight and cohesionWeight balance member count against cluster
// tightness when deriving the 0-100 relevance score.
const (
	sizeWeight     = 0.6
	cohesionWeight = 0.4
)

// relevanceScores derives an integer 0-100 score per cluster from cohesion
// and member count, normalized against the batch's largest and tightest
// cluster so the top topic is comparably scored across different queries.
func relevanceScores(points [][]float64, clusters []cluster) []int {
	if len(clusters) == 0 {
		return nil
	}

	maxSize := 0
	maxCohesion := 0.0
	cohesions := make([]float64, len(clusters))
	for i, c := range clusters {
		if len(c.members) > maxSize {
			maxSize = len(c.members)
		}
		cohesions[i] = cohesion(points, c)
		if cohesions[i] > maxCohesion {
			maxCohesion = cohesions[i]
		}
	}

	raw := make([]float64, len(clusters))
	maxRaw := 0.0
	for i, c := range clusters {
		sizeShare := float64(len(c.members)) / float64(maxSize)
		cohesionShare := 0.0
		if maxCohesion > 0 {
			cohesionShare = cohesions[i] / maxCohesion
		}
		raw[i] = sizeWeight*sizeShare + cohesionWeight*cohesionShare
		if raw[i] > maxRaw {
			maxRaw = raw[i]
		}
	}

	scores := make([]int, len(clusters))
	for i := range raw {
		score := 0
		if maxRaw > 0 {
			score = int(math.Round(100 * raw[i] / maxRaw))
		}
		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}
		scores[i] = score
	}
	return scores
}

// rankTopics sorts by relevance descending with deterministic tie-breaks:
// article count descending, then title lexical order.
func rankTopics(topics []domain.Topic) {
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Relevance != topics[j].Relevance {
			return topics[i].Relevance > topics[j].Relevance
		}
		if topics[i].ArticleCount != topics[j].ArticleCount {
			return topics[i].ArticleCount > topics[j].ArticleCount
		}
		return topics[i].Title < topics[j].Title
	})
}
