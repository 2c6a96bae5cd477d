package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docsync/internal/api"
	"github.com/dgallion1/docsync/internal/config"
	"github.com/dgallion1/docsync/internal/docstore"
	"github.com/dgallion1/docsync/internal/layout"
	"github.com/dgallion1/docsync/internal/metrics"
	"github.com/dgallion1/docsync/internal/pipeline"
	"github.com/dgallion1/docsync/internal/workstore"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
)

func main() {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage and clients.
	docs, err := docstore.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		log.Error("open document store", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	ws := workstore.NewClient(cfg.WorkstoreURL, cfg.WorkstoreAPIKey)
	layouts := layout.NewLoader(cfg.LayoutDir)

	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, pipeline.Deps{
		Docs:      docs,
		Workstore: ws,
		Layouts:   layouts,
		Recorder:  recorder,
		Stats:     metrics.NewCycleStats(time.Hour),
	}, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, layouts, metrics.HTTPHandler(reg), log, cfg)
	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
	}).Handler(srv)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		ws.Close()
		docs.Close()
	}()

	log.Info("starting docsync", "port", cfg.Port, "layouts", cfg.LayoutDir, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
