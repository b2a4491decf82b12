package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"multiview-sync/internal/offsetstore"
	"multiview-sync/internal/platform/config"
	"multiview-sync/internal/platform/logger"
	"multiview-sync/internal/platform/metrics"
	"multiview-sync/internal/playerlink"
	"multiview-sync/internal/syncengine"
	"multiview-sync/internal/viewer"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	mode, err := syncengine.ParsePlaybackMode(cfg.PlaybackMode)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	static, err := offsetstore.LoadStatic(cfg.StaticOffsetsPath, cfg.Season)
	if err != nil {
		log.Error("load static offsets", "error", err)
		os.Exit(1)
	}

	overrides, err := offsetstore.Open(cfg.UserOffsetsPath, log)
	if err != nil {
		log.Error("open user offsets", "error", err)
		os.Exit(1)
	}
	defer overrides.Close()

	registry := syncengine.NewRegistry()
	met := metrics.New()
	engine := syncengine.New(registry, syncengine.Options{
		Mode:      mode,
		Static:    static,
		Overrides: overrides,
		Interval:  cfg.SyncInterval,
		Threshold: cfg.DriftThreshold,
		Logger:    log,
		Metrics:   met,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go engine.Run(ctx)

	hub := playerlink.NewHub(registry, engine, log, met)
	svc := viewer.NewService(engine)
	h := viewer.NewHandler(svc, engine, overrides, hub, registry, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetConnectedPlayers(registry.Count()) }).ServeHTTP(w, r)
	})
	h.Register(r)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"mode", mode.String(),
		"sync_interval", engine.Interval().String(),
		"static_offsets", len(static),
		"user_offsets_path", cfg.UserOffsetsPath,
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	stop()

	log.Info("server stopped")
}
