package usecase

import (
	"context"
	"sync"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
	"github.com/kirillkom/pageindex-recall/internal/core/ports"
)

type taggerFake struct {
	tokens []ports.TaggedToken
}

func (f taggerFake) Tag(string) []ports.TaggedToken {
	return f.tokens
}

type embedderFake struct {
	vector []float32
	err    error
	calls  int
	// block holds EmbedQuery until ctx ends when set.
	block bool
}

func (f *embedderFake) EmbedQuery(ctx context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type vectorStoreFake struct {
	rows      []ports.VectorRow
	fallback  map[string]ports.FallbackDocument
	scanErr   error
	lookupErr error
}

func (f *vectorStoreFake) ScanVectors(_ context.Context, fn func(ports.VectorRow) error) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	for _, row := range f.rows {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (f *vectorStoreFake) LookupFallback(_ context.Context, id string) (*ports.FallbackDocument, bool, error) {
	if f.lookupErr != nil {
		return nil, false, f.lookupErr
	}
	doc, ok := f.fallback[id]
	if !ok {
		return nil, false, nil
	}
	return &doc, true, nil
}

type rerankerFake struct {
	scores []float64
	err    error
	query  string
	docs   []string
	calls  int
}

func (f *rerankerFake) Rerank(_ context.Context, query string, docs []string) ([]float64, error) {
	f.calls++
	f.query = query
	f.docs = append([]string(nil), docs...)
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

type chatFake struct {
	reply string
	err   error
	req   ports.ChatRequest
	calls int
}

func (f *chatFake) Complete(_ context.Context, req ports.ChatRequest) (string, error) {
	f.calls++
	f.req = req
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type streamerFake struct {
	deltas []domain.StreamDelta
	err    error
	req    ports.ChatRequest
	// afterDelta runs after the delta at the same index was delivered.
	afterDelta map[int]func()
}

func (f *streamerFake) Stream(_ context.Context, req ports.ChatRequest, onDelta func(domain.StreamDelta) error) error {
	f.req = req
	for i, d := range f.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
		if hook, ok := f.afterDelta[i]; ok {
			hook()
		}
	}
	return f.err
}

type loaderFake struct {
	index *domain.PageIndex
	err   error
	// onLoad runs before the result is returned.
	onLoad func()
}

func (f *loaderFake) Load(context.Context, string) (*domain.PageIndex, error) {
	if f.onLoad != nil {
		f.onLoad()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.index, nil
}

type sinkRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *sinkRecorder) Emit(_ context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *sinkRecorder) kinds(kind domain.EventKind) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (s *sinkRecorder) states() []domain.RunState {
	var out []domain.RunState
	for _, e := range s.kinds(domain.EventState) {
		out = append(out, e.State)
	}
	return out
}

func node(id, title, text string, children ...*domain.DocumentNode) *domain.DocumentNode {
	return &domain.DocumentNode{ID: id, Title: title, Text: text, Children: children}
}

// withPaths fills Path the same way the loader does.
func withPaths(roots ...*domain.DocumentNode) []*domain.DocumentNode {
	var visit func(n *domain.DocumentNode, parent []string)
	visit = func(n *domain.DocumentNode, parent []string) {
		n.Path = append(append([]string(nil), parent...), n.Title)
		for _, c := range n.Children {
			visit(c, n.Path)
		}
	}
	for _, r := range roots {
		visit(r, nil)
	}
	return roots
}
