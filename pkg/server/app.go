package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	domrepo "CreditLens/internal/domain/repository"
	"CreditLens/internal/middleware"
	"CreditLens/internal/services/training"
	pkgch "CreditLens/pkg/clickhouse"
	"CreditLens/pkg/config"
	xhttp "CreditLens/pkg/http"
	pkgkafka "CreditLens/pkg/kafka"
	applogger "CreditLens/pkg/logger"
	"CreditLens/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	pipeline    *middleware.IngestPipeline
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	queue       *queue.RedisQueue
	coordinator *training.Coordinator
	chClient    *pkgch.Client
	publisher   domrepo.ScorePublisher
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	pipeline *middleware.IngestPipeline,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	coordinator *training.Coordinator,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:         cfg,
		pipeline:    pipeline,
		consumer:    consumer,
		kh:          kh,
		coordinator: coordinator,
		chClient:    chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetQueue allows DI to inject the retrain job queue.
func (a *App) SetQueue(q *queue.RedisQueue) { a.queue = q }

// SetPublisher allows DI to inject the score event publisher for teardown.
func (a *App) SetPublisher(p domrepo.ScorePublisher) { a.publisher = p }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, _ := applogger.New(&applogger.Config{
		Level:  a.cfg.Log.Level,
		Format: a.cfg.Log.Format,
		Output: a.cfg.Log.Output,
	})

	// Seed an initial model so scoring is available before the first
	// operator-driven retrain. No-op when an active model already exists.
	if a.coordinator != nil {
		if err := a.coordinator.Bootstrap(ctx); err != nil {
			l.Error("model bootstrap error", applogger.Error(err))
			return err
		}
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start the ingest pipeline's background flusher
	a.pipeline.Start(ctx)
	l.Info("ingest pipeline started")

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start retrain queue workers if configured
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			l.Error("retrain queue start error", applogger.Error(err))
			return err
		}
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l, err := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		log.Printf("failed to create logger: %v", err)
		return err
	}
	l.Info("shutting down...")

	// Stop accepting new observations first
	a.pipeline.Stop()

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Stop retrain workers
	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			l.Warn("retrain queue stop error", applogger.Error(err))
		}
	}

	// Close outbound publisher
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			l.Warn("score publisher close error", applogger.Error(err))
		}
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
