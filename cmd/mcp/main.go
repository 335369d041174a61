package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/pageindex-recall/internal/adapters/mcp"
	"github.com/kirillkom/pageindex-recall/internal/bootstrap"
	"github.com/kirillkom/pageindex-recall/internal/config"
	"github.com/kirillkom/pageindex-recall/internal/observability/logging"
)

const service = "recall-mcp"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, service, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: service, Logger: logger})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := mcpadapter.NewServer(app.Recall, logger)
	if err := server.Serve(ctx, os.Stdin, os.Stdout, os.Stderr); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
