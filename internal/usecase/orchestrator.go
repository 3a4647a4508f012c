package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"topicscanner/internal/config"
	"topicscanner/internal/discovery"
	"topicscanner/internal/domain"
	"topicscanner/internal/ports"
)

// markFailedTimeout bounds the failure write issued after the pipeline
// context is already dead.
const markFailedTimeout = 5 * time.Second

// SubmitRequest is an inbound analysis submission. Zero-valued optional
// fields fall back to configured defaults.
type SubmitRequest struct {
	Query            string
	AutoDetect       bool
	Source           string
	Category         string
	MaxArticles      int
	TargetTopicCount int
	MinClusterSize   int
}

// Deps carries the orchestrator collaborators.
type Deps struct {
	Classifier ports.Classifier
	Source     ports.ArticleSource
	Embedder   ports.Embedder
	Engine     *discovery.Engine
	Repository ports.AnalysisRepository
	Logger     *slog.Logger
	Pipeline   config.PipelineConfig
	Feeds      config.FeedConfig
}

// Orchestrator runs the analysis pipeline: classify, fetch, embed, discover,
// persist. Submission returns immediately; the pipeline itself runs in a
// background goroutine bounded by the configured timeout.
type Orchestrator struct {
	classifier ports.Classifier
	source     ports.ArticleSource
	embedder   ports.Embedder
	engine     *discovery.Engine
	repo       ports.AnalysisRepository
	logger     *slog.Logger
	pipeline   config.PipelineConfig
	feeds      config.FeedConfig

	wg sync.WaitGroup
}

// NewOrchestrator wires an orchestrator from its dependencies.
func NewOrchestrator(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Pipeline.Timeout <= 0 {
		deps.Pipeline.Timeout = 5 * time.Minute
	}
	if deps.Pipeline.MaxArticles <= 0 {
		deps.Pipeline.MaxArticles = 50
	}
	if deps.Pipeline.MinClusterSize <= 0 {
		deps.Pipeline.MinClusterSize = 3
	}
	return &Orchestrator{
		classifier: deps.Classifier,
		source:     deps.Source,
		embedder:   deps.Embedder,
		engine:     deps.Engine,
		repo:       deps.Repository,
		logger:     logger,
		pipeline:   deps.Pipeline,
		feeds:      deps.Feeds,
	}
}

// Submit validates the request, persists a PENDING stub and starts the
// pipeline. The returned id is immediately resolvable through Get.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return "", fmt.Errorf("%w: query must not be empty", domain.ErrInvalidRequest)
	}
	if req.MaxArticles <= 0 {
		req.MaxArticles = o.pipeline.MaxArticles
	}
	if req.MinClusterSize <= 0 {
		req.MinClusterSize = o.pipeline.MinClusterSize
	}

	analysis := &domain.Analysis{
		ID:        uuid.NewString(),
		Query:     req.Query,
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.repo.Create(ctx, analysis); err != nil {
		return "", fmt.Errorf("create analysis: %w", err)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(analysis.ID, req)
	}()

	return analysis.ID, nil
}

// Get returns the hydrated analysis.
func (o *Orchestrator) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	return o.repo.Get(ctx, id)
}

// NormalizePage clamps list pagination to the supported window: limit in
// [1, 100] with a default of 20, offset non-negative.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List returns summary rows newest first plus the total count.
func (o *Orchestrator) List(ctx context.Context, limit, offset int) ([]domain.Analysis, int, error) {
	limit, offset = NormalizePage(limit, offset)
	return o.repo.List(ctx, limit, offset)
}

// Delete removes the analysis and its topics.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	return o.repo.Delete(ctx, id)
}

// Wait blocks until all in-flight pipelines finish. Used on shutdown and in
// tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// run drives one analysis through the stage machine. Each stage transition
// is persisted before the stage's collaborator call so pollers always see
// the stage currently in progress.
func (o *Orchestrator) run(id string, req SubmitRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), o.pipeline.Timeout)
	defer cancel()

	logger := o.logger.With("analysis_id", id, "query", req.Query)
	started := time.Now()

	cls, err := o.classify(ctx, id, req)
	if err != nil {
		o.fail(id, "classification", logger, err)
		return
	}

	docs, err := o.fetch(ctx, id, req, cls)
	if err != nil {
		o.fail(id, "fetch", logger, err)
		return
	}
	if len(docs) == 0 {
		logger.Info("no articles found, completing with zero topics")
		if err := o.repo.SaveResults(ctx, id, nil, 0); err != nil {
			o.fail(id, "persistence", logger, err)
		}
		return
	}

	docs, err = o.embed(ctx, id, docs)
	if err != nil {
		o.fail(id, "embedding", logger, err)
		return
	}

	if err := o.repo.UpdateStatus(ctx, id, domain.StatusDiscoveringTopics); err != nil {
		o.fail(id, "persistence", logger, err)
		return
	}
	result, err := o.engine.Discover(ctx, discovery.Request{
		Query:            req.Query,
		Documents:        docs,
		TargetTopicCount: req.TargetTopicCount,
		MinClusterSize:   req.MinClusterSize,
	})
	if err != nil {
		o.fail(id, "discovery", logger, err)
		return
	}
	for i := range result.Topics {
		result.Topics[i].AnalysisID = id
	}

	if err := o.repo.SaveResults(ctx, id, result.Topics, result.TotalArticlesProcessed); err != nil {
		o.fail(id, "persistence", logger, err)
		return
	}

	logger.Info("analysis completed",
		"topics", len(result.Topics),
		"articles", result.TotalArticlesProcessed,
		"elapsed", time.Since(started).Round(time.Millisecond))
}

func (o *Orchestrator) classify(ctx context.Context, id string, req SubmitRequest) (ports.ClassifyResult, error) {
	if err := o.repo.UpdateStatus(ctx, id, domain.StatusClassifying); err != nil {
		return ports.ClassifyResult{}, err
	}

	var cls ports.ClassifyResult
	if req.Source != "" && !req.AutoDetect {
		// Caller pinned the source; skip the classifier round trip.
		cls = ports.ClassifyResult{
			Source:            req.Source,
			SourceType:        domain.TypeResearch,
			SuggestedCategory: req.Category,
		}
		if req.Source == "reddit" {
			cls.SourceType = domain.TypeCommunity
		}
	} else {
		err := o.withRetry(ctx, "classify", func(ctx context.Context) error {
			var callErr error
			cls, callErr = o.classifier.Classify(ctx, req.Query)
			return callErr
		})
		if err != nil {
			return ports.ClassifyResult{}, err
		}
	}

	feedURL := buildFeedURL(o.feeds.ArxivAPIURL, o.feeds.RedditBaseURL, cls)
	if err := o.repo.SetClassification(ctx, id, cls.SourceType, feedURL); err != nil {
		return ports.ClassifyResult{}, err
	}
	return cls, nil
}

func (o *Orchestrator) fetch(ctx context.Context, id string, req SubmitRequest, cls ports.ClassifyResult) ([]domain.Document, error) {
	if err := o.repo.UpdateStatus(ctx, id, domain.StatusFetchingArticles); err != nil {
		return nil, err
	}

	fetchReq := ports.FetchRequest{
		Source:   cls.Source,
		Category: cls.SuggestedCategory,
		Query:    req.Query,
		FeedURL:  buildFeedURL(o.feeds.ArxivAPIURL, o.feeds.RedditBaseURL, cls),
		Limit:    req.MaxArticles,
	}

	var result ports.FetchResult
	err := o.withRetry(ctx, "fetch", func(ctx context.Context) error {
		var callErr error
		result, callErr = o.source.Fetch(ctx, fetchReq)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if len(result.Articles) > req.MaxArticles {
		result.Articles = result.Articles[:req.MaxArticles]
	}
	return result.Articles, nil
}

func (o *Orchestrator) embed(ctx context.Context, id string, docs []domain.Document) ([]domain.Document, error) {
	if err := o.repo.UpdateStatus(ctx, id, domain.StatusEmbeddingArticles); err != nil {
		return nil, err
	}

	ids := make([]string, len(docs))
	texts := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ExternalID
		texts[i] = doc.Text
		if texts[i] == "" {
			texts[i] = doc.Title
		}
	}

	var vectors [][]float64
	err := o.withRetry(ctx, "embed", func(ctx context.Context) error {
		var callErr error
		vectors, callErr = o.embedder.Embed(ctx, ids, texts)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}
	for i := range docs {
		docs[i].Embedding = vectors[i]
	}
	return docs, nil
}

// withRetry reruns fn with a linear backoff on failure. Context death ends
// the loop immediately.
func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= o.pipeline.RetryAttempts; attempt++ {
		if attempt > 0 {
			o.logger.Warn("retrying operation", "op", op, "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.pipeline.RetryBackoff * time.Duration(attempt)):
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, o.pipeline.RetryAttempts+1, err)
}

// fail records the terminal FAILED state. It uses a fresh context because
// the pipeline context may already be expired, which is itself a common
// failure cause.
func (o *Orchestrator) fail(id, stage string, logger *slog.Logger, cause error) {
	logger.Error("pipeline stage failed", "stage", stage, "error", cause)

	ctx, cancel := context.WithTimeout(context.Background(), markFailedTimeout)
	defer cancel()

	reason := fmt.Sprintf("%s: %v", stage, cause)
	if err := o.repo.MarkFailed(ctx, id, reason); err != nil {
		logger.Error("cannot record failure", "error", err)
	}
}
