package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"topicscanner/internal/domain"
	"topicscanner/internal/ports"
)

// MemoryRepository is an in-memory AnalysisRepository with the same
// semantics as the Postgres adapter. It backs tests and local runs without
// a database.
type MemoryRepository struct {
	mu           sync.RWMutex
	analyses     map[string]*domain.Analysis
	topics       map[string]*domain.Topic  // topic id -> topic
	articles     map[string]domain.Article // external id -> article
	associations map[string][]string       // topic id -> external ids
	order        []string                  // analysis ids in insertion order
}

var _ ports.AnalysisRepository = (*MemoryRepository)(nil)

// NewMemoryRepository builds an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		analyses:     map[string]*domain.Analysis{},
		topics:       map[string]*domain.Topic{},
		articles:     map[string]domain.Article{},
		associations: map[string][]string{},
	}
}

// Create persists the PENDING stub; an existing id is left untouched.
func (m *MemoryRepository) Create(_ context.Context, analysis *domain.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.analyses[analysis.ID]; ok {
		return nil
	}
	stored := *analysis
	stored.Topics = nil
	m.analyses[analysis.ID] = &stored
	m.order = append(m.order, analysis.ID)
	return nil
}

// UpdateStatus records a stage transition unless the analysis is terminal.
func (m *MemoryRepository) UpdateStatus(_ context.Context, id string, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	analysis, ok := m.analyses[id]
	if !ok {
		return domain.ErrNotFound
	}
	if analysis.Status.Terminal() {
		return nil
	}
	analysis.Status = status
	return nil
}

// MarkFailed moves the analysis to FAILED with the given reason.
func (m *MemoryRepository) MarkFailed(_ context.Context, id string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	analysis, ok := m.analyses[id]
	if !ok {
		return domain.ErrNotFound
	}
	if analysis.Status.Terminal() {
		return nil
	}
	analysis.Status = domain.StatusFailed
	analysis.FailureReason = reason
	return nil
}

// SetClassification stores the classified type and resolved feed URL.
func (m *MemoryRepository) SetClassification(_ context.Context, id string, typ domain.AnalysisType, feedURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	analysis, ok := m.analyses[id]
	if !ok {
		return domain.ErrNotFound
	}
	analysis.Type = typ
	analysis.FeedURL = feedURL
	return nil
}

// SaveResults commits topics, deduplicated articles, associations, the
// processed count and the COMPLETED status atomically under the lock.
func (m *MemoryRepository) SaveResults(_ context.Context, id string, topics []domain.Topic, processed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	analysis, ok := m.analyses[id]
	if !ok {
		return domain.ErrNotFound
	}

	for _, topic := range topics {
		if _, exists := m.topics[topic.ID]; exists {
			continue
		}
		stored := topic
		stored.AnalysisID = id
		stored.Articles = nil
		m.topics[topic.ID] = &stored

		for _, article := range topic.Articles {
			if _, exists := m.articles[article.ExternalID]; !exists {
				if article.ID == "" {
					article.ID = uuid.NewString()
				}
				m.articles[article.ExternalID] = article
			}
			m.associations[topic.ID] = appendUnique(m.associations[topic.ID], article.ExternalID)
		}
	}

	analysis.TotalArticlesProcessed = processed
	if analysis.Status != domain.StatusFailed {
		analysis.Status = domain.StatusCompleted
	}
	return nil
}

// Get hydrates the analysis with topics and articles, recomputing article
// counts from the live associations.
func (m *MemoryRepository) Get(_ context.Context, id string) (*domain.Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	analysis, ok := m.analyses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	result := *analysis
	for _, topic := range m.topics {
		if topic.AnalysisID != id {
			continue
		}
		hydrated := *topic
		for _, externalID := range m.associations[topic.ID] {
			if article, ok := m.articles[externalID]; ok {
				hydrated.Articles = append(hydrated.Articles, article)
			}
		}
		sort.Slice(hydrated.Articles, func(i, j int) bool {
			return hydrated.Articles[i].Title < hydrated.Articles[j].Title
		})
		hydrated.ArticleCount = len(hydrated.Articles)
		result.Topics = append(result.Topics, hydrated)
	}

	sortTopics(result.Topics)
	return &result, nil
}

// List returns summaries newest first.
func (m *MemoryRepository) List(_ context.Context, limit, offset int) ([]domain.Analysis, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := len(m.order)
	items := make([]domain.Analysis, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(items) < limit; i-- {
		if analysis, ok := m.analyses[m.order[i]]; ok {
			items = append(items, *analysis)
		}
	}
	return items, total, nil
}

// Delete removes the analysis, its topics and associations. Shared article
// rows stay because other analyses may still reference them.
func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.analyses[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.analyses, id)

	for i, stored := range m.order {
		if stored == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	for topicID, topic := range m.topics {
		if topic.AnalysisID == id {
			delete(m.topics, topicID)
			delete(m.associations, topicID)
		}
	}
	return nil
}

// ArticleCount reports the number of globally stored articles. Test helper.
func (m *MemoryRepository) ArticleCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.articles)
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
