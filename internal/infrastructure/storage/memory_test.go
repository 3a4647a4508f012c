package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"topicscanner/internal/domain"
)

func newAnalysis(id, query string) *domain.Analysis {
	return &domain.Analysis{
		ID:        id,
		Query:     query,
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemoryCreateIdempotent(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, newAnalysis("a1", "first")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := repo.Create(ctx, newAnalysis("a1", "changed")); err != nil {
		t.Fatalf("repeat Create error: %v", err)
	}

	got, err := repo.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Query != "first" {
		t.Fatalf("repeat create overwrote the stub: %q", got.Query)
	}

	_, total, err := repo.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 analysis, got %d", total)
	}
}

func TestMemoryTerminalStatusIsSticky(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, newAnalysis("a1", "q")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := repo.MarkFailed(ctx, "a1", "fetch failed"); err != nil {
		t.Fatalf("MarkFailed error: %v", err)
	}
	if err := repo.UpdateStatus(ctx, "a1", domain.StatusClassifying); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}

	got, err := repo.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Status != domain.StatusFailed {
		t.Fatalf("terminal status overwritten: %s", got.Status)
	}
	if got.FailureReason != "fetch failed" {
		t.Fatalf("failure reason lost: %q", got.FailureReason)
	}
}

func TestMemorySharedArticlesSurviveDelete(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	ctx := context.Background()

	shared := domain.Article{ExternalID: "ext-1", Title: "Shared"}

	if err := repo.Create(ctx, newAnalysis("a1", "q1")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := repo.SaveResults(ctx, "a1", []domain.Topic{
		{ID: "t1", Title: "Topic One", Relevance: 90, Articles: []domain.Article{shared}},
	}, 1); err != nil {
		t.Fatalf("SaveResults error: %v", err)
	}

	if err := repo.Create(ctx, newAnalysis("a2", "q2")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := repo.SaveResults(ctx, "a2", []domain.Topic{
		{ID: "t2", Title: "Topic Two", Relevance: 80, Articles: []domain.Article{shared}},
	}, 1); err != nil {
		t.Fatalf("SaveResults error: %v", err)
	}

	if repo.ArticleCount() != 1 {
		t.Fatalf("expected one globally deduplicated article, got %d", repo.ArticleCount())
	}

	if err := repo.Delete(ctx, "a1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if repo.ArticleCount() != 1 {
		t.Fatalf("shared article removed by cascade, count %d", repo.ArticleCount())
	}

	got, err := repo.Get(ctx, "a2")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(got.Topics) != 1 || got.Topics[0].ArticleCount != 1 {
		t.Fatalf("surviving analysis lost its article: %+v", got.Topics)
	}

	if _, err := repo.Get(ctx, "a1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemorySaveResultsIdempotent(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, newAnalysis("a1", "q")); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	topics := []domain.Topic{
		{ID: "t1", Title: "Topic", Relevance: 70, Articles: []domain.Article{
			{ExternalID: "e1", Title: "One"},
			{ExternalID: "e2", Title: "Two"},
		}},
	}
	if err := repo.SaveResults(ctx, "a1", topics, 2); err != nil {
		t.Fatalf("SaveResults error: %v", err)
	}
	if err := repo.SaveResults(ctx, "a1", topics, 2); err != nil {
		t.Fatalf("repeat SaveResults error: %v", err)
	}

	got, err := repo.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got.Status)
	}
	if len(got.Topics) != 1 {
		t.Fatalf("expected 1 topic, got %d", len(got.Topics))
	}
	if got.Topics[0].ArticleCount != 2 {
		t.Fatalf("expected 2 articles, got %d", got.Topics[0].ArticleCount)
	}
	if repo.ArticleCount() != 2 {
		t.Fatalf("expected 2 articles stored, got %d", repo.ArticleCount())
	}
}

func TestMemoryListOrderAndPagination(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	ctx := context.Background()

	for _, id := range []string{"a1", "a2", "a3"} {
		if err := repo.Create(ctx, newAnalysis(id, "q-"+id)); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}

	items, total, err := repo.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if len(items) != 2 || items[0].ID != "a3" || items[1].ID != "a2" {
		t.Fatalf("unexpected page: %+v", items)
	}

	items, _, err = repo.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "a1" {
		t.Fatalf("unexpected second page: %+v", items)
	}
}

func TestMemoryStatusUpdatesUnknownAnalysis(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.UpdateStatus(ctx, "missing", domain.StatusClassifying); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from UpdateStatus, got %v", err)
	}
	if err := repo.MarkFailed(ctx, "missing", "whatever"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from MarkFailed, got %v", err)
	}
}

func TestSortTopicsUsesRecomputedCounts(t *testing.T) {
	t.Parallel()

	// Equal relevance: the tie-break must follow the live article counts,
	// not whatever order (or stored count) the rows arrived with.
	topics := []domain.Topic{
		{Title: "Small", Relevance: 50, ArticleCount: 2},
		{Title: "Large", Relevance: 50, ArticleCount: 5},
		{Title: "Top", Relevance: 90, ArticleCount: 1},
	}
	sortTopics(topics)

	if topics[0].Title != "Top" {
		t.Fatalf("relevance should rank first, got %q", topics[0].Title)
	}
	if topics[1].Title != "Large" || topics[2].Title != "Small" {
		t.Fatalf("count tie-break failed: %q, %q", topics[1].Title, topics[2].Title)
	}
}

func TestMemoryTopicOrdering(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, newAnalysis("a1", "q")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	topics := []domain.Topic{
		{ID: "t1", Title: "Beta", Relevance: 50, Articles: []domain.Article{{ExternalID: "e1"}}},
		{ID: "t2", Title: "Alpha", Relevance: 50, Articles: []domain.Article{{ExternalID: "e2"}}},
		{ID: "t3", Title: "Gamma", Relevance: 90, Articles: []domain.Article{{ExternalID: "e3"}}},
	}
	if err := repo.SaveResults(ctx, "a1", topics, 3); err != nil {
		t.Fatalf("SaveResults error: %v", err)
	}

	got, err := repo.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Topics[0].Title != "Gamma" {
		t.Fatalf("highest relevance should rank first, got %q", got.Topics[0].Title)
	}
	if got.Topics[1].Title != "Alpha" || got.Topics[2].Title != "Beta" {
		t.Fatalf("tie-break by title failed: %q, %q", got.Topics[1].Title, got.Topics[2].Title)
	}
}
