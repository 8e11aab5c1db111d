package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clip-automation/internal/engine"
	"clip-automation/internal/platform/config"
	"clip-automation/internal/platform/logger"
	"clip-automation/internal/platform/metrics"
	"clip-automation/internal/playback"
	"clip-automation/internal/studio"
	"clip-automation/internal/timeline"
	"clip-automation/internal/unit"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	shutdownTimeout = 10 * time.Second
	outputChannels  = 2
)

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	registry := unit.NewRegistry()
	if err := unit.RegisterBuiltins(registry); err != nil {
		log.Error("register builtin units", "error", err)
		os.Exit(1)
	}
	registry.Seal()
	eng := engine.New(registry, log)

	store := studio.NewFileStore(cfg.ProjectFile)
	track, err := studio.OpenTrack(store, timeline.Options{
		SampleRate: cfg.SampleRate,
		BufferSize: cfg.BufferSize,
		UndoLimit:  cfg.UndoLimit,
		Engine:     eng,
		Logger:     log,
	})
	if err != nil {
		log.Error("open project", "path", cfg.ProjectFile, "error", err)
		os.Exit(1)
	}
	defer track.Close()

	met := metrics.New()
	for i := studio.Unresolved(track); i > 0; i-- {
		met.IncResolutionFailures()
	}

	svc := studio.NewService(track, eng, eng.Registry(), store, log)
	player := playback.New(track, outputChannels, track.DefaultBufferSize(), met, log)
	h := studio.NewHandler(svc, player, log, met)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met, "/metrics"))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveClips(svc.ActiveClips()) }).ServeHTTP(w, r)
	})
	h.Mount(r)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go player.Run(ctx)

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
		"sample_rate", track.SampleRate(),
		"buffer_size", track.DefaultBufferSize(),
		"project_file", store.Path(),
		"clips", len(track.Clips()),
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
