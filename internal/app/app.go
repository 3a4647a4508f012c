package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"topicscanner/internal/api"
	"topicscanner/internal/config"
	"topicscanner/internal/discovery"
	"topicscanner/internal/infrastructure/classify"
	"topicscanner/internal/infrastructure/embedding"
	"topicscanner/internal/infrastructure/feeds"
	"topicscanner/internal/infrastructure/storage"
	"topicscanner/internal/logging"
	"topicscanner/internal/ports"
	"topicscanner/internal/scanner"
	"topicscanner/internal/usecase"
)

// Application wires configs to collaborators, the orchestrator and the HTTP
// server lifecycle.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	orchestrator *usecase.Orchestrator
	server       *http.Server
	db           *sql.DB
	redis        *redis.Client
}

// New builds a runnable application instance. With an empty or "memory"
// database DSN state lives in process memory, which suits local runs.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	app := &Application{cfg: cfg, logger: baseLogger}

	var repo ports.AnalysisRepository
	if cfg.Database.DSN == "" || cfg.Database.DSN == "memory" {
		baseLogger.Warn("no database configured, using in-memory store")
		repo = storage.NewMemoryRepository()
	} else {
		db, err := storage.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		app.db = db
		repo = storage.NewPostgresRepository(db)
	}

	var classifier ports.Classifier
	if cfg.Classifier.Endpoint != "" {
		classifier = classify.NewClient(cfg.Classifier.Endpoint, cfg.Classifier.APIKey)
	} else {
		classifier = classify.NewHeuristic()
	}

	registry := scanner.NewRegistry()
	registry.Register(feeds.NewArxivScanner())
	registry.Register(feeds.NewRSSScanner())
	registry.Register(feeds.NewArxivHTMLScanner(nil))
	source := feeds.NewStrategySource(registry, baseLogger.With("component", "source"))

	var embedder ports.Embedder
	if cfg.Embedding.Provider == "cohere" {
		embedder = embedding.NewCohereEmbedder(cfg.Embedding.APIKey, cfg.Embedding.Model)
	} else {
		embedder = embedding.NewClient(cfg.Embedding.Endpoint, cfg.Embedding.APIKey)
	}
	if cfg.Redis.Addr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		embedder = embedding.NewCache(embedder, app.redis, cfg.Redis.TTL, baseLogger.With("component", "embedding.cache"))
	}

	app.orchestrator = usecase.NewOrchestrator(usecase.Deps{
		Classifier: classifier,
		Source:     source,
		Embedder:   embedder,
		Engine:     discovery.NewEngine(baseLogger.With("component", "discovery")),
		Repository: repo,
		Logger:     baseLogger.With("component", "pipeline"),
		Pipeline:   cfg.Pipeline,
		Feeds:      cfg.Feeds,
	})

	apiServer := api.NewServer(app.orchestrator, baseLogger.With("component", "http"))
	app.server = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return app, nil
}

// Run serves HTTP until the context is canceled, then drains in-flight
// pipelines and shuts the server down.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	a.orchestrator.Wait()

	if a.redis != nil {
		if closeErr := a.redis.Close(); closeErr != nil {
			a.logger.Warn("redis close", "error", closeErr)
		}
	}
	if a.db != nil {
		if closeErr := a.db.Close(); closeErr != nil {
			a.logger.Warn("database close", "error", closeErr)
		}
	}
	return err
}
