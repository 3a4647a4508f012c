package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"topicscanner/internal/domain"
	"topicscanner/internal/ports"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists analyses, topics, articles and their
// associations in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.AnalysisRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Open connects to Postgres and bootstraps the schema.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			id UUID PRIMARY KEY,
			query TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			feed_url TEXT NOT NULL DEFAULT '',
			total_articles_processed INT NOT NULL DEFAULT 0,
			failure_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS topics (
			id UUID PRIMARY KEY,
			analysis_id UUID NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			article_count INT NOT NULL DEFAULT 0,
			relevance INT NOT NULL DEFAULT 0,
			centroid FLOAT8[]
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			id UUID PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			link TEXT NOT NULL DEFAULT '',
			snippet TEXT NOT NULL DEFAULT '',
			embedding FLOAT8[]
		)`,
		`CREATE TABLE IF NOT EXISTS topic_articles (
			topic_id UUID NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
			article_id UUID NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
			PRIMARY KEY (topic_id, article_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_topics_analysis_id ON topics (analysis_id)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}

// Create persists the PENDING stub. Re-inserting an existing id is a no-op.
func (r *PostgresRepository) Create(ctx context.Context, analysis *domain.Analysis) error {
	query, args, err := psql.Insert("analyses").
		Columns("id", "query", "type", "status", "feed_url", "created_at").
		Values(analysis.ID, analysis.Query, analysis.Type, analysis.Status, analysis.FeedURL, analysis.CreatedAt).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// UpdateStatus records a stage transition. Terminal states are never
// overwritten, which keeps replayed transitions harmless; an unknown id is
// domain.ErrNotFound.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	query, args, err := psql.Update("analyses").
		Set("status", status).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"status": []domain.Status{domain.StatusCompleted, domain.StatusFailed}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return r.checkStatusWrite(ctx, id, result)
}

// MarkFailed moves the analysis to FAILED and records the cause. An unknown
// id is domain.ErrNotFound.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	query, args, err := psql.Update("analyses").
		Set("status", domain.StatusFailed).
		Set("failure_reason", reason).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"status": []domain.Status{domain.StatusCompleted, domain.StatusFailed}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return r.checkStatusWrite(ctx, id, result)
}

// checkStatusWrite distinguishes the two reasons a guarded status update can
// touch zero rows: a terminal analysis (a no-op) and an unknown id
// (domain.ErrNotFound).
func (r *PostgresRepository) checkStatusWrite(ctx context.Context, id string, result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	query, args, err := psql.Select("1").From("analyses").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build existence check: %w", err)
	}
	var one int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&one); errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	} else if err != nil {
		return fmt.Errorf("check analysis exists: %w", err)
	}
	return nil
}

// SetClassification stores the classified type and resolved feed URL.
func (r *PostgresRepository) SetClassification(ctx context.Context, id string, typ domain.AnalysisType, feedURL string) error {
	query, args, err := psql.Update("analyses").
		Set("type", typ).
		Set("feed_url", feedURL).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set classification: %w", err)
	}
	return nil
}

// SaveResults commits topics, deduplicated articles, associations, the
// processed count and the COMPLETED status in one transaction.
func (r *PostgresRepository) SaveResults(ctx context.Context, id string, topics []domain.Topic, processed int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, topic := range topics {
		query, args, err := psql.Insert("topics").
			Columns("id", "analysis_id", "title", "description", "article_count", "relevance", "centroid").
			Values(topic.ID, id, topic.Title, topic.Description, topic.ArticleCount, topic.Relevance, pq.Array(topic.Centroid)).
			Suffix("ON CONFLICT (id) DO NOTHING").
			ToSql()
		if err != nil {
			return fmt.Errorf("build topic insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert topic: %w", err)
		}

		for _, article := range topic.Articles {
			articleID, err := upsertArticle(ctx, tx, article)
			if err != nil {
				return err
			}

			assoc, assocArgs, err := psql.Insert("topic_articles").
				Columns("topic_id", "article_id").
				Values(topic.ID, articleID).
				Suffix("ON CONFLICT DO NOTHING").
				ToSql()
			if err != nil {
				return fmt.Errorf("build association insert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, assoc, assocArgs...); err != nil {
				return fmt.Errorf("insert association: %w", err)
			}
		}
	}

	finish, finishArgs, err := psql.Update("analyses").
		Set("status", domain.StatusCompleted).
		Set("total_articles_processed", processed).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"status": []domain.Status{domain.StatusFailed}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build completion update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, finish, finishArgs...); err != nil {
		return fmt.Errorf("complete analysis: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results: %w", err)
	}
	return nil
}

// upsertArticle inserts the article keyed globally by external id and
// returns the canonical row id, whether fresh or pre-existing.
func upsertArticle(ctx context.Context, tx *sql.Tx, article domain.Article) (string, error) {
	articleID := article.ID
	if articleID == "" {
		articleID = uuid.NewString()
	}

	insert, args, err := psql.Insert("articles").
		Columns("id", "external_id", "title", "link", "snippet", "embedding").
		Values(articleID, article.ExternalID, article.Title, article.Link, article.Snippet, pq.Array(article.Embedding)).
		Suffix("ON CONFLICT (external_id) DO NOTHING").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build article insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return "", fmt.Errorf("insert article: %w", err)
	}

	var canonical string
	lookup, lookupArgs, err := psql.Select("id").
		From("articles").
		Where(sq.Eq{"external_id": article.ExternalID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build article lookup: %w", err)
	}
	if err := tx.QueryRowContext(ctx, lookup, lookupArgs...).Scan(&canonical); err != nil {
		return "", fmt.Errorf("lookup article: %w", err)
	}
	return canonical, nil
}

// Get hydrates the analysis with its topics and each topic's articles.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	query, args, err := psql.Select(
		"id", "query", "type", "status", "feed_url",
		"total_articles_processed", "failure_reason", "created_at").
		From("analyses").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var analysis domain.Analysis
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&analysis.ID, &analysis.Query, &analysis.Type, &analysis.Status,
		&analysis.FeedURL, &analysis.TotalArticlesProcessed,
		&analysis.FailureReason, &analysis.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query analysis: %w", err)
	}

	topics, err := r.topicsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	analysis.Topics = topics
	return &analysis, nil
}

func (r *PostgresRepository) topicsFor(ctx context.Context, analysisID string) ([]domain.Topic, error) {
	query, args, err := psql.Select("id", "title", "description", "relevance").
		From("topics").
		Where(sq.Eq{"analysis_id": analysisID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build topics select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	var topics []domain.Topic
	for rows.Next() {
		topic := domain.Topic{AnalysisID: analysisID}
		if err := rows.Scan(&topic.ID, &topic.Title, &topic.Description, &topic.Relevance); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("topics iteration: %w", err)
	}

	for i := range topics {
		articles, err := r.articlesFor(ctx, topics[i].ID)
		if err != nil {
			return nil, err
		}
		topics[i].Articles = articles
		// Counts come from the live associations, never the stored value.
		topics[i].ArticleCount = len(articles)
	}
	// Sort after recomputation so the count tie-break matches what callers see.
	sortTopics(topics)
	return topics, nil
}

func (r *PostgresRepository) articlesFor(ctx context.Context, topicID string) ([]domain.Article, error) {
	query, args, err := psql.Select("a.id", "a.external_id", "a.title", "a.link", "a.snippet").
		From("articles a").
		Join("topic_articles ta ON ta.article_id = a.id").
		Where(sq.Eq{"ta.topic_id": topicID}).
		OrderBy("a.title ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build articles select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var article domain.Article
		if err := rows.Scan(&article.ID, &article.ExternalID, &article.Title, &article.Link, &article.Snippet); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("articles iteration: %w", err)
	}
	return articles, nil
}

// List returns summary rows ordered by creation time descending.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]domain.Analysis, int, error) {
	var total int
	countQuery, countArgs, err := psql.Select("COUNT(*)").From("analyses").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count analyses: %w", err)
	}

	query, args, err := psql.Select(
		"id", "query", "type", "status", "feed_url",
		"total_articles_processed", "failure_reason", "created_at").
		From("analyses").
		OrderBy("created_at DESC", "id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var items []domain.Analysis
	for rows.Next() {
		var analysis domain.Analysis
		if err := rows.Scan(
			&analysis.ID, &analysis.Query, &analysis.Type, &analysis.Status,
			&analysis.FeedURL, &analysis.TotalArticlesProcessed,
			&analysis.FailureReason, &analysis.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan analysis: %w", err)
		}
		items = append(items, analysis)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("analyses iteration: %w", err)
	}
	return items, total, nil
}

// Delete removes the analysis; topics and associations cascade through the
// foreign keys, shared article rows stay.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Delete("analyses").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
