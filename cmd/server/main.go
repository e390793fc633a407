// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/quizzatron/quizzatron/internal/auth"
	"github.com/quizzatron/quizzatron/internal/cache"
	"github.com/quizzatron/quizzatron/internal/config"
	"github.com/quizzatron/quizzatron/internal/handlers"
	"github.com/quizzatron/quizzatron/internal/middleware"
	"github.com/quizzatron/quizzatron/internal/questions"
	"github.com/quizzatron/quizzatron/internal/quiz"
	"github.com/quizzatron/quizzatron/internal/session"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("DEBUG") != "" {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg := config.Default()
	if err := config.Load(*configFile, &cfg); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	if err := auth.Init(); err != nil {
		logger.Fatalf("failed to init session keys: %v", err)
	}

	// History is optional; the engine runs fine without Redis, games just
	// go unrecorded.
	var history quiz.HistoryRecorder
	if cfg.Redis.Addr != "" {
		publisher, err := cache.NewPublisher(cfg.Redis.Addr, cfg.Redis.Queue, logger)
		if err != nil {
			logger.Warnf("game history disabled: %v", err)
		} else {
			defer publisher.Close()
			history = publisher
			logger.Infof("Publishing game history to Redis at %s (queue %s)", cfg.Redis.Addr, publisher.Queue())
		}
	}

	source := questions.NewHTTPSource(
		cfg.QuestionSource.URL,
		time.Duration(cfg.QuestionSource.TimeoutSec)*time.Second,
		logger,
	)

	hub := handlers.NewHub(logger)
	store := quiz.NewStore(logger)
	svc := quiz.NewService(quiz.ServiceConfig{
		Store:         store,
		Source:        source,
		Gateway:       hub,
		History:       history,
		Logger:        logger,
		SourceTimeout: time.Duration(cfg.QuestionSource.TimeoutSec) * time.Second,
	})
	tracker := session.NewTracker(svc, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reaper := quiz.NewReaper(svc,
		time.Duration(cfg.Reaper.IntervalSec)*time.Second,
		time.Duration(cfg.Reaper.IdleTimeoutSec)*time.Second,
		logger)
	go reaper.Run(ctx)
	go tracker.RunSweeper(ctx, hub, time.Duration(cfg.OrphanSweepSec)*time.Second)

	mux := http.NewServeMux()

	api := handlers.NewAPIServer(svc, logger)
	api.Register(mux)

	mux.Handle("/ws", handlers.WSHandler(logger, svc, hub, tracker))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: middleware.LogMiddleware(logger)(mux),
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Infof("Running on %s", cfg.ListenAddr)

	select {
	case err := <-errc:
		logger.Fatalf("server exited: %v", err)
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown error: %v", err)
		}
	}
}
