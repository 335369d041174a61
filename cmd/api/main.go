package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/pageindex-recall/internal/adapters/http"
	"github.com/kirillkom/pageindex-recall/internal/bootstrap"
	"github.com/kirillkom/pageindex-recall/internal/config"
	"github.com/kirillkom/pageindex-recall/internal/observability/logging"
	"github.com/kirillkom/pageindex-recall/internal/observability/metrics"
)

const service = "recall-api"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:      service,
		Logger:       logger,
		Registerer:   httpMetrics.Registry(),
		ConnectQueue: cfg.NATSURL != "",
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	opts := httpadapter.RouterOptions{
		AuthToken:         cfg.APIAuthToken,
		RateLimitRPS:      cfg.RateLimitRPS,
		RateLimitBurst:    cfg.RateLimitBurst,
		MaxConcurrentRuns: cfg.MaxConcurrentRuns,
		Metrics:           httpMetrics,
		Health:            app.Store.Ping,
		Breakers:          app.Executor.BreakerStates,
		ActiveRuns:        app.Recall.ActiveRuns,
		Logger:            logger,
	}
	if app.Queue != nil {
		opts.Jobs = app.Queue
	}
	router := httpadapter.NewRouter(app.Recall, opts).Handler()

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		logger.Error("api_listen_failed", "port", cfg.APIPort, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// recall streams stay open through synthesis
		WriteTimeout: cfg.SummaryTimeout() + 2*time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "max_connections", cfg.APIMaxConnections)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_failed", "error", err)
	}
}
