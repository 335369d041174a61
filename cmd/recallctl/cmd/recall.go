package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pageindex-recall/internal/bootstrap"
	"github.com/kirillkom/pageindex-recall/internal/config"
	"github.com/kirillkom/pageindex-recall/internal/core/domain"
)

type recallOptions struct {
	mode       string
	docType    string
	chunkLimit int
	indexPath  string
	model      string
	format     string
	quiet      bool
}

func newRecallCmd() *cobra.Command {
	var opts recallOptions

	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: "Run one recall and print its events",
		Long: `Run one recall and print its progress, the fused evidence and the summary.

Examples:
  recallctl recall "CA1234 engine start procedure" --mode precise
  recallctl recall "cabin pressure warning" --doc-type book --chunk-limit 15
  recallctl recall "fuel imbalance" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecall(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", string(domain.ModeSmart), "Search mode: smart, precise, fuzzy")
	cmd.Flags().StringVarP(&opts.docType, "doc-type", "t", "", "Preferred document type")
	cmd.Flags().IntVarP(&opts.chunkLimit, "chunk-limit", "n", 0, "Vector candidates to rerank (0 uses the doc-type default)")
	cmd.Flags().StringVar(&opts.indexPath, "index", "", "Page index JSON file (defaults to RECALL_INDEX_PATH)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Summary model (defaults to RECALL_SUMMARY_MODEL)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Hide progress log lines")
	return cmd
}

func runRecall(ctx context.Context, cmd *cobra.Command, query string, opts recallOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q", opts.format)
	}
	cfg := config.Load()
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: service, Logger: newLogger(cmd.ErrOrStderr())})
	if err != nil {
		return err
	}
	defer app.Close()

	printer := &eventPrinter{out: cmd.OutOrStdout(), progress: cmd.ErrOrStderr(), format: opts.format, quiet: opts.quiet}
	outcome, err := app.Recall.Run(ctx, domain.RecallRequest{
		Query:        query,
		Mode:         opts.mode,
		DocType:      opts.docType,
		SummaryModel: opts.model,
		IndexPath:    opts.indexPath,
		ChunkLimit:   opts.chunkLimit,
	}, printer)
	if outcome == nil {
		return err
	}
	printer.finish(outcome)
	if errors.Is(err, domain.ErrRunCancelled) {
		return nil
	}
	return err
}

// eventPrinter renders run events. Text mode streams progress to stderr and
// prints evidence and the final summary to stdout; json mode writes one event
// per line.
type eventPrinter struct {
	mu       sync.Mutex
	out      io.Writer
	progress io.Writer
	format   string
	quiet    bool
}

func (p *eventPrinter) Emit(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == "json" {
		return json.NewEncoder(p.out).Encode(event)
	}

	switch event.Kind {
	case domain.EventLog:
		if !p.quiet {
			fmt.Fprintf(p.progress, "[%s] %s %s\n", event.At.Format("15:04:05"), strings.ToUpper(event.Level), event.Message)
		}
	case domain.EventState:
		if !p.quiet {
			fmt.Fprintf(p.progress, "-- %s\n", event.State)
		}
	case domain.EventResults:
		writeResults(p.out, event.Results)
	}
	return nil
}

func (p *eventPrinter) finish(outcome *domain.RunOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.format == "json" {
		return
	}
	if outcome.Summary != nil {
		fmt.Fprintf(p.out, "\n%s\n", outcome.Summary.Markdown())
	}
	switch outcome.State {
	case domain.StateCancelled:
		fmt.Fprintln(p.out, "\nrecall cancelled")
	case domain.StateFailed:
		fmt.Fprintf(p.out, "\nrecall failed: %v\n", outcome.Err)
	}
}

func writeResults(w io.Writer, results []domain.FusedResult) {
	fmt.Fprintf(w, "%d results\n", len(results))
	for _, r := range results {
		fmt.Fprintf(w, "\n%2d. [%s] %.4f  %s\n", r.Rank, r.Source, r.FinalScore, r.Path)
		fmt.Fprintf(w, "    %s\n", preview(r.Content, 160))
	}
}

func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
