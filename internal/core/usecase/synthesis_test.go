package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
)

func synthesisResults() []domain.FusedResult {
	return []domain.FusedResult{
		{ID: "1", Rank: 1, Source: domain.SourceLexical, FinalScore: 0.0819672, Path: "Ch1 > S1", Content: "first"},
		{ID: "2", Rank: 2, Source: domain.SourceVector, FinalScore: 0.0163934, Path: "Ch2", Content: "second"},
	}
}

func TestSynthesizerAccumulatesDeltas(t *testing.T) {
	streamer := &streamerFake{deltas: []domain.StreamDelta{
		{Reasoning: "think "},
		{Reasoning: "more"},
		{Content: "Answer "},
		{},
		{Content: "done"},
	}}
	synth := NewSynthesizer(streamer, "default-model", time.Second)

	var updates []domain.Summary
	q := domain.NewQuery("what starts the engine", domain.ModeSmart, "manual")
	summary, err := synth.Synthesize(context.Background(), *q, "", synthesisResults(), func(s domain.Summary) {
		updates = append(updates, s)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 4 {
		t.Fatalf("expected 4 updates, got %d", len(updates))
	}
	if summary.Reasoning != "think more" || summary.Content != "Answer done" || summary.Model != "default-model" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if streamer.req.Temperature != 0.6 {
		t.Fatalf("unexpected temperature %v", streamer.req.Temperature)
	}
	if !strings.Contains(streamer.req.Messages[0].Content, "[manual]") {
		t.Fatalf("expected doc type constraint in system prompt")
	}
	user := streamer.req.Messages[1].Content
	if !strings.HasPrefix(user, "Query: what starts the engine\n\nRetrieved Chunks:") {
		t.Fatalf("unexpected user prompt prefix: %q", user)
	}
	if !strings.Contains(user, "[Rank 1] [Source: JSON_Source] (RRF: 0.0820)\nSection Path: Ch1 > S1\nContent:\nfirst") {
		t.Fatalf("unexpected chunk block in %q", user)
	}
}

func TestSynthesizerCancellationAddsMarker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	streamer := &streamerFake{
		deltas:     []domain.StreamDelta{{Content: "partial"}, {Content: " never"}},
		afterDelta: map[int]func(){0: cancel},
	}
	synth := NewSynthesizer(streamer, "m", time.Second)

	var last domain.Summary
	summary, err := synth.Synthesize(ctx, *domain.NewQuery("q", domain.ModeSmart, ""), "m", synthesisResults(), func(s domain.Summary) {
		last = s
	})
	if !errors.Is(err, domain.ErrRunCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !summary.Truncated || summary.Content != "partial" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !strings.HasSuffix(last.Markdown(), domain.TruncationMarker) {
		t.Fatalf("expected truncation marker in rendered summary, got %q", last.Markdown())
	}
}

func TestSynthesizerStreamFailureIsReported(t *testing.T) {
	streamer := &streamerFake{err: errors.New("status 502")}
	synth := NewSynthesizer(streamer, "m", time.Second)

	summary, err := synth.Synthesize(context.Background(), *domain.NewQuery("q", domain.ModeSmart, ""), "", synthesisResults(), nil)
	if err != nil {
		t.Fatalf("stream failure must not fail the run: %v", err)
	}
	if summary.Error == "" || !strings.Contains(summary.Markdown(), "Summary generation failed") {
		t.Fatalf("expected explicit failure line, got %+v", summary)
	}
}

func TestSummaryMarkdownLayout(t *testing.T) {
	s := domain.Summary{Reasoning: "line1\nline2", Content: "answer"}
	want := "> **Thinking Process:**\n> line1\n> line2\n\n---\n\nanswer"
	if got := s.Markdown(); got != want {
		t.Fatalf("unexpected markdown:\n%q\nwant\n%q", got, want)
	}
}
