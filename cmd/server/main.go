package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/clausegest/internal/api"
	"github.com/dgallion1/clausegest/internal/config"
	"github.com/dgallion1/clausegest/internal/pathstore"
	"github.com/dgallion1/clausegest/internal/pipeline"
	"github.com/dgallion1/clausegest/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("loading configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ch, err := cfg.Chunker.NewChunker(log)
	if err != nil {
		log.Error("building chunker", "error", err)
		os.Exit(1)
	}

	idx, catalog, closer, err := openBackend(cfg)
	if err != nil {
		log.Error("opening index backend", "backend", cfg.IndexBackend, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch := pipeline.NewOrchestrator(cfg, ch, idx, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, catalog, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		if err := closer.Close(); err != nil {
			log.Warn("closing index backend", "error", err)
		}
	}()

	log.Info("starting clausegest",
		"port", cfg.Port,
		"index_backend", cfg.IndexBackend,
		"max_tokens", ch.Config().MaxTokens,
		"token_counter", cfg.Chunker.TokenCounter,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

// openBackend returns the indexer for cfg.IndexBackend and, when the backend
// can be queried, the catalog behind /api/documents.
func openBackend(cfg config.Config) (pipeline.Indexer, api.Catalog, io.Closer, error) {
	switch cfg.IndexBackend {
	case config.BackendSQLite:
		st, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath})
		if err != nil {
			return nil, nil, nil, err
		}
		return st, st, st, nil
	case config.BackendPathstore:
		client := pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		ix := pathstore.NewIndexer(client, cfg.PathstorePrefix)
		return ix, nil, closeFunc(func() error { client.Close(); return nil }), nil
	default:
		return pipeline.NopIndexer{}, nil, closeFunc(func() error { return nil }), nil
	}
}
