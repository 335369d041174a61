package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/pageindex-recall/internal/adapters/worker"
	"github.com/kirillkom/pageindex-recall/internal/bootstrap"
	"github.com/kirillkom/pageindex-recall/internal/config"
	"github.com/kirillkom/pageindex-recall/internal/observability/logging"
	"github.com/kirillkom/pageindex-recall/internal/observability/metrics"
)

const service = "recall-worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:      service,
		Logger:       logger,
		Registerer:   workerMetrics.Registry(),
		ConnectQueue: true,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	w := worker.New(app.Recall, app.Queue, worker.Options{
		JobTimeout: cfg.SummaryTimeout() + 3*time.Minute,
		Metrics:    workerMetrics,
		Logger:     logger,
	})
	if err := app.Queue.SubscribeCancel(ctx, w.Cancel); err != nil {
		logger.Error("worker_cancel_subscribe_failed", "error", err)
		os.Exit(1)
	}

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "concurrency", cfg.WorkerConcurrency)
	if err := app.Queue.SubscribeRecall(ctx, w.Handle); err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
