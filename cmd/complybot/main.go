package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mzampetti/complybot/internal/config"
	"github.com/mzampetti/complybot/internal/dialogue"
	"github.com/mzampetti/complybot/internal/httpapi"
	"github.com/mzampetti/complybot/internal/intent"
	"github.com/mzampetti/complybot/internal/observability"
	"github.com/mzampetti/complybot/internal/responses"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := responses.NewStore(ctx, cfg.DatabaseURL, cfg.DBPath)
	if err != nil {
		log.Fatalf("response store init failed: %v", err)
	}
	defer store.Close()

	replies := intent.DefaultReplies()
	if cfg.RepliesPath != "" {
		replies, err = intent.LoadReplies(cfg.RepliesPath)
		if err != nil {
			log.Fatalf("replies load failed: %v", err)
		}
	}
	interp := intent.New(replies)

	sessions := dialogue.NewManager(store, cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *dialogue.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})
	sessions.SetPersistFailureHook(func(err error) {
		log.Printf("response log persistence degraded: %v", err)
		metrics.PersistenceFailures.Inc()
	})

	engine := dialogue.NewEngine(interp, cfg.TypingDelay, cfg.GenerateDelay)
	engine.SetIntentHook(func(resolution string) {
		metrics.IntentResolutions.WithLabelValues(resolution).Inc()
	})

	api := httpapi.New(cfg, sessions, engine, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 30*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
