package ports

import (
	"context"
	"time"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
)

// Embedder builds a dense vector for query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Reranker scores documents against a query with a cross-encoder.
// The returned slice is parallel to docs.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]float64, error)
}

// ChatCompleter runs one non-streaming chat completion.
type ChatCompleter interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// AnswerStreamer runs one streaming chat completion. onDelta is called in
// arrival order; returning an error from it stops the stream.
type AnswerStreamer interface {
	Stream(ctx context.Context, req ChatRequest, onDelta func(domain.StreamDelta) error) error
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
}

// VectorRow is one stored embedding. SectionID is empty when the row is not
// linked to a PageIndex node.
type VectorRow struct {
	ID        string
	SectionID string
	Embedding []float32
}

// FallbackDocument is the secondary resolution record for a vector id.
type FallbackDocument struct {
	ID              string
	EmbeddingText   string
	OriginalSnippet string
	SectionPath     string
}

// VectorStore is a read-only view over stored embeddings.
type VectorStore interface {
	ScanVectors(ctx context.Context, fn func(VectorRow) error) error
	LookupFallback(ctx context.Context, id string) (*FallbackDocument, bool, error)
}

// PageIndexLoader loads a structure index from a path or DSN-like locator.
type PageIndexLoader interface {
	Load(ctx context.Context, path string) (*domain.PageIndex, error)
}

type TaggedToken struct {
	Text string
	Tag  string
}

// Tagger segments text into part-of-speech tagged tokens.
type Tagger interface {
	Tag(text string) []TaggedToken
}

// EventSink receives run events in emission order.
type EventSink interface {
	Emit(ctx context.Context, event domain.Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, event domain.Event) error

func (f EventSinkFunc) Emit(ctx context.Context, event domain.Event) error {
	return f(ctx, event)
}

// RecallQueue transports recall jobs and their events between processes.
type RecallQueue interface {
	PublishRecall(ctx context.Context, req domain.RecallRequest) error
	SubscribeRecall(ctx context.Context, handler func(context.Context, domain.RecallRequest) error) error
	PublishEvent(ctx context.Context, event domain.Event) error
	PublishCancel(ctx context.Context, runID string) error
	SubscribeCancel(ctx context.Context, handler func(runID string)) error
}

// RecallMetrics records pipeline telemetry. Implementations must be safe for
// concurrent use.
type RecallMetrics interface {
	ObserveStage(stage string, elapsed time.Duration)
	ObserveCandidates(channel domain.Channel, count int)
	IncDegraded(stage string)
	IncRun(state domain.RunState)
}
