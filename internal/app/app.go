// Package app builds and runs the whole service: configuration, storage
// clients, services, handlers, and the HTTP server's lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yungbote/graphrag-backend/internal/db"
	"github.com/yungbote/graphrag-backend/internal/handlers"
	"github.com/yungbote/graphrag-backend/internal/platform/envutil"
	"github.com/yungbote/graphrag-backend/internal/platform/graphstore"
	"github.com/yungbote/graphrag-backend/internal/platform/logger"
	"github.com/yungbote/graphrag-backend/internal/platform/observability"
	"github.com/yungbote/graphrag-backend/internal/platform/openai"
	"github.com/yungbote/graphrag-backend/internal/platform/qdrant"
	"github.com/yungbote/graphrag-backend/internal/platform/s3store"
	"github.com/yungbote/graphrag-backend/internal/repos"
	"github.com/yungbote/graphrag-backend/internal/server"
	"github.com/yungbote/graphrag-backend/internal/services"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

type App struct {
	log          *logger.Logger
	graph        *graphstore.Client
	srv          *http.Server
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	env := envutil.String("APP_ENV", "development")

	log, err := logger.New(env)
	if err != nil {
		return nil, fmt.Errorf("app: init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "graphrag-backend"),
		Environment: env,
		Version:     Version,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		return nil, fmt.Errorf("app: init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		return nil, fmt.Errorf("app: migrate: %w", err)
	}

	graph, err := graphstore.NewFromEnv(log)
	if err != nil {
		return nil, fmt.Errorf("app: init graph store: %w", err)
	}

	qdrantCfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("app: resolve vector config: %w", err)
	}
	vectors, err := qdrant.NewBackend(log, qdrantCfg)
	if err != nil {
		return nil, fmt.Errorf("app: init vector store: %w", err)
	}

	ai, err := openai.NewClient(log)
	if err != nil {
		return nil, fmt.Errorf("app: init model client: %w", err)
	}

	bucket, err := s3store.NewBucketService(log)
	if err != nil {
		return nil, fmt.Errorf("app: init bucket: %w", err)
	}

	docs := repos.NewDocumentRepo(pg.DB(), log)

	ingestion, err := services.NewIngestionService(log, graph, vectors, ai, bucket, docs)
	if err != nil {
		return nil, fmt.Errorf("app: init ingestion: %w", err)
	}
	query, err := services.NewQueryService(log, graph, vectors, ai)
	if err != nil {
		return nil, fmt.Errorf("app: init query: %w", err)
	}
	exploration, err := services.NewExplorationService(log, graph, vectors, ai)
	if err != nil {
		return nil, fmt.Errorf("app: init exploration: %w", err)
	}
	reset, err := services.NewResetService(log, graph, vectors, bucket, docs)
	if err != nil {
		return nil, fmt.Errorf("app: init reset: %w", err)
	}
	documents, err := services.NewDocumentService(log, graph, bucket, docs)
	if err != nil {
		return nil, fmt.Errorf("app: init documents: %w", err)
	}

	router := server.NewRouter(log, server.Handlers{
		Documents: handlers.NewDocumentHandler(log, ingestion, documents),
		Query:     handlers.NewQueryHandler(log, query),
		Graph:     handlers.NewGraphHandler(log, exploration),
		Reset:     handlers.NewResetHandler(log, reset),
		Health:    handlers.NewHealthHandler(Version),
	})

	srv := &http.Server{
		Addr:              ":" + envutil.String("PORT", "8080"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		log:          log,
		graph:        graph,
		srv:          srv,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Server listening", "addr", a.srv.Addr, "version", Version)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	case sig := <-sigCh:
		a.log.Info("Shutting down", "signal", sig.String())
	case <-ctx.Done():
		a.log.Info("Shutting down", "reason", "context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: shutdown: %w", err)
	}
	return nil
}

func (a *App) Close(ctx context.Context) {
	if err := a.graph.Close(ctx); err != nil {
		a.log.Warn("Graph store close failed", "error", err.Error())
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.log.Warn("Tracer shutdown failed", "error", err.Error())
		}
	}
}
