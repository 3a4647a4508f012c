package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"topicscanner/internal/domain"
)

// Request is the inbound contract of the discovery engine. Every document
// must carry a pre-computed embedding; the engine never generates vectors
// itself.
type Request struct {
	Query            string
	Documents        []domain.Document
	TargetTopicCount int // 0 lets the density clustering decide
	MinClusterSize   int
}

// Result holds ranked topics for one discovery run.
type Result struct {
	Query                  string
	Topics                 []domain.Topic
	TotalArticlesProcessed int
}

// Engine clusters a batch of embedded documents into labeled, scored topics.
// It is stateless and safe for concurrent use across analyses.
type Engine struct {
	logger *slog.Logger
}

// NewEngine builds a discovery engine. The logger may be nil.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Discover runs reduction, density clustering, target-count reconciliation,
// oversized-cluster splitting, labeling, scoring and ranking. The whole run
// is deterministic for a fixed input batch. A batch with fewer documents
// than MinClusterSize yields zero topics, not an error.
func (e *Engine) Discover(ctx context.Context, req Request) (Result, error) {
	if req.MinClusterSize < 2 {
		req.MinClusterSize = 2
	}

	docs := make([]domain.Document, 0, len(req.Documents))
	for _, doc := range req.Documents {
		if len(doc.Embedding) > 0 {
			docs = append(docs, doc)
		}
	}

	result := Result{Query: req.Query, TotalArticlesProcessed: len(docs)}
	if len(docs) < req.MinClusterSize {
		e.logger.Debug("batch below minimum cluster size", "documents", len(docs), "min_cluster_size", req.MinClusterSize)
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("discovery canceled: %w", err)
	}

	vectors := make([][]float64, len(docs))
	dim := len(docs[0].Embedding)
	for i, doc := range docs {
		if len(doc.Embedding) != dim {
			return Result{}, fmt.Errorf("document %s: embedding dimension %d, want %d", doc.ExternalID, len(doc.Embedding), dim)
		}
		vectors[i] = doc.Embedding
	}

	var clusters []cluster
	points := vectors
	if totalVariance(vectors) < varianceFloor {
		// Degenerate batch: every embedding is (nearly) identical, so the
		// only meaningful outcome is a single trivial cluster.
		members := make([]int, len(docs))
		for i := range members {
			members[i] = i
		}
		clusters = []cluster{{members: members, centroid: centroidOf(vectors, members)}}
	} else {
		points = reduceDimensions(vectors, reducedDim(len(docs)))
		eps := estimateEps(points, req.MinClusterSize)
		labels := dbscan(points, eps, req.MinClusterSize)
		clusters = collectClusters(points, labels)
		clusters = dropUndersized(clusters, req.MinClusterSize)
		clusters = splitOversized(points, clusters, eps, req.MinClusterSize, 2)
		if req.TargetTopicCount > 0 {
			clusters = mergeToTarget(points, clusters, req.TargetTopicCount)
		}
		clusters = dropUndersized(clusters, req.MinClusterSize)
	}

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("discovery canceled: %w", err)
	}

	scores := relevanceScores(points, clusters)
	topics := make([]domain.Topic, 0, len(clusters))
	for i, c := range clusters {
		members := make([]domain.Document, len(c.members))
		articles := make([]domain.Article, len(c.members))
		for j, idx := range c.members {
			members[j] = docs[idx]
			articles[j] = domain.Article{
				ExternalID: docs[idx].ExternalID,
				Title:      docs[idx].Title,
				Link:       docs[idx].Link,
				Snippet:    docs[idx].Snippet,
				Embedding:  docs[idx].Embedding,
			}
		}

		title, description := labelCluster(members, docs)
		topics = append(topics, domain.Topic{
			ID:           uuid.NewString(),
			Title:        title,
			Description:  description,
			ArticleCount: len(articles),
			Relevance:    scores[i],
			Centroid:     embeddingCentroid(members),
			Articles:     articles,
		})
	}

	rankTopics(topics)
	result.Topics = topics

	e.logger.Debug("discovery complete",
		"documents", len(docs),
		"topics", len(topics),
		"target", req.TargetTopicCount,
		"min_cluster_size", req.MinClusterSize)
	return result, nil
}

// embeddingCentroid averages the original-space embeddings of the members,
// independent of the reduced space used for clustering.
func embeddingCentroid(members []domain.Document) []float64 {
	if len(members) == 0 {
		return nil
	}
	centroid := make([]float64, len(members[0].Embedding))
	for _, doc := range members {
		floats.Add(centroid, doc.Embedding)
	}
	floats.Scale(1/float64(len(members)), centroid)
	return centroid
}
