// Package cmd holds the recallctl commands.
package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pageindex-recall/internal/observability/logging"
)

const service = "recallctl"

var (
	logLevel  string
	logFormat string
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recallctl",
		Short: "Run and inspect hybrid recall against a page index",
		Long: `recallctl runs the recall pipeline in-process: keyword search over the
page index and semantic search over the vector store, fused and summarized.

Service endpoints and models come from the same environment variables as the
API server.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for stderr diagnostics")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format for stderr diagnostics (text|json)")

	cmd.AddCommand(newRecallCmd())
	cmd.AddCommand(newKeywordsCmd())
	cmd.AddCommand(newInspectCmd())
	return cmd
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func newLogger(w io.Writer) *slog.Logger {
	return logging.New(w, service, logLevel, logging.ParseFormat(logFormat))
}
