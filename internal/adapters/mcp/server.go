package mcpadapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
	"github.com/kirillkom/pageindex-recall/internal/core/ports"
)

const Version = "0.1.0"

// Server exposes the recall pipeline as an MCP tool over stdio.
type Server struct {
	recall ports.RecallService
	mcp    *server.MCPServer
	logger *slog.Logger
}

func NewServer(recall ports.RecallService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		recall: recall,
		mcp:    server.NewMCPServer("pageindex-recall", Version, server.WithToolCapabilities(false)),
		logger: logger,
	}
	s.mcp.AddTool(recallTool(), s.handleRecall)
	return s
}

func recallTool() mcp.Tool {
	return mcp.NewTool("recall",
		mcp.WithDescription("Search the indexed manuals with keyword and semantic retrieval, then summarize the evidence."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Question or search phrase")),
		mcp.WithString("mode", mcp.Enum(string(domain.ModeSmart), string(domain.ModePrecise), string(domain.ModeFuzzy)),
			mcp.Description("smart (default), precise favors exact keyword hits, fuzzy favors semantic hits")),
		mcp.WithString("doc_type", mcp.Description("Preferred document type, for example a manual or a book")),
		mcp.WithNumber("chunk_limit", mcp.Description("Maximum vector candidates to rerank")),
		mcp.WithString("summary_model", mcp.Description("Model used for the summary")),
	)
}

// Serve blocks until ctx ends or stdin closes. stdout carries the protocol.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer, errOut io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(errOut, "mcp: ", log.LstdFlags))
	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve mcp stdio: %w", err)
	}
	return nil
}

func (s *Server) handleRecall(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	req := domain.RecallRequest{
		Query:        query,
		Mode:         request.GetString("mode", string(domain.ModeSmart)),
		DocType:      request.GetString("doc_type", ""),
		SummaryModel: request.GetString("summary_model", ""),
		ChunkLimit:   request.GetInt("chunk_limit", 0),
	}

	collector := &progressSink{notify: s.notifier(ctx)}
	outcome, err := s.recall.Run(ctx, req, collector)
	if outcome == nil {
		return mcp.NewToolResultError(fmt.Sprintf("recall failed: %v", err)), nil
	}
	s.logger.Info("mcp_recall_finished", "run_id", outcome.RunID, "state", outcome.State, "results", len(outcome.Results))

	text := RenderOutcome(outcome)
	if outcome.State != domain.StateDone {
		return mcp.NewToolResultError(text), nil
	}
	return mcp.NewToolResultText(text), nil
}

// notifier forwards run log lines to the client as logging notifications.
func (s *Server) notifier(ctx context.Context) func(level, message string) {
	srv := server.ServerFromContext(ctx)
	if srv == nil {
		return nil
	}
	return func(level, message string) {
		err := srv.SendNotificationToClient(ctx, "notifications/message", map[string]any{
			"level":  level,
			"logger": "recall",
			"data":   message,
		})
		if err != nil {
			s.logger.Debug("mcp_notification_dropped", "error", err)
		}
	}
}

type progressSink struct {
	mu     sync.Mutex
	notify func(level, message string)
}

func (p *progressSink) Emit(_ context.Context, event domain.Event) error {
	if event.Kind != domain.EventLog {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notify != nil {
		p.notify(string(mcpLogLevel(event.Level)), event.Message)
	}
	return nil
}

// mcpLogLevel maps slog level names onto the lowercase MCP logging levels.
func mcpLogLevel(level string) mcp.LoggingLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return mcp.LoggingLevelDebug
	case "WARN", "WARNING":
		return mcp.LoggingLevelWarning
	case "ERROR":
		return mcp.LoggingLevelError
	default:
		return mcp.LoggingLevelInfo
	}
}

// RenderOutcome formats a finished run as markdown: the summary first, then
// the ranked evidence.
func RenderOutcome(outcome *domain.RunOutcome) string {
	var b strings.Builder
	switch outcome.State {
	case domain.StateCancelled:
		b.WriteString("Recall was cancelled.\n")
	case domain.StateFailed:
		b.WriteString("Recall failed")
		if outcome.Err != nil {
			fmt.Fprintf(&b, ": %v", outcome.Err)
		}
		b.WriteString("\n")
	}

	if outcome.Summary != nil {
		if md := outcome.Summary.Markdown(); md != "" {
			b.WriteString("## Summary\n\n")
			b.WriteString(md)
			b.WriteString("\n\n")
		}
	}

	if len(outcome.Results) > 0 {
		b.WriteString("## Evidence\n")
		for _, r := range outcome.Results {
			fmt.Fprintf(&b, "\n### %d. %s\n", r.Rank, r.Path)
			fmt.Fprintf(&b, "_source: %s, score: %.4f_\n\n", r.Source, r.FinalScore)
			b.WriteString(strings.TrimSpace(r.Content))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
