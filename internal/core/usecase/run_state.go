package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
	"github.com/kirillkom/pageindex-recall/internal/core/ports"
)

// runTracker owns the state of one run and serializes everything it emits
// to the sink, so branch goroutines can log concurrently.
type runTracker struct {
	mu     sync.Mutex
	runID  string
	state  domain.RunState
	sink   ports.EventSink
	logger *slog.Logger
	now    func() time.Time
}

func newRunTracker(runID string, sink ports.EventSink, logger *slog.Logger, now func() time.Time) *runTracker {
	return &runTracker{
		runID:  runID,
		state:  domain.StateIdle,
		sink:   sink,
		logger: logger.With("run_id", runID),
		now:    now,
	}
}

// transition moves the run to the next state and emits a state event.
func (t *runTracker) transition(ctx context.Context, to domain.RunState) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.CanTransition(to) {
		return fmt.Errorf("run state %s -> %s: %w", t.state, to, domain.ErrInvalidInput)
	}
	from := t.state
	t.state = to
	t.logger.Info("recall_state", "from", from, "to", to)
	t.emitLocked(ctx, domain.Event{Kind: domain.EventState, State: to})
	return nil
}

func (t *runTracker) info(ctx context.Context, msg string, attrs ...any) {
	t.log(ctx, slog.LevelInfo, msg, attrs...)
}

func (t *runTracker) warn(ctx context.Context, msg string, attrs ...any) {
	t.log(ctx, slog.LevelWarn, msg, attrs...)
}

func (t *runTracker) log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	t.logger.Log(ctx, level, msg, attrs...)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emitLocked(ctx, domain.Event{
		Kind:    domain.EventLog,
		Level:   level.String(),
		Message: formatLogMessage(msg, attrs),
	})
}

func (t *runTracker) emit(ctx context.Context, event domain.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emitLocked(ctx, event)
}

func (t *runTracker) emitLocked(ctx context.Context, event domain.Event) {
	if t.sink == nil {
		return
	}
	event.RunID = t.runID
	event.At = t.now().UTC()
	if event.State == "" {
		event.State = t.state
	}
	// Sinks observe their own cancellation; a failed delivery must not stop the run.
	if err := t.sink.Emit(context.WithoutCancel(ctx), event); err != nil {
		t.logger.Debug("recall_event_dropped", "kind", event.Kind, "error", err)
	}
}

func formatLogMessage(msg string, attrs []any) string {
	if len(attrs) == 0 {
		return msg
	}
	out := msg
	for i := 0; i+1 < len(attrs); i += 2 {
		out += fmt.Sprintf(" %v=%v", attrs[i], attrs[i+1])
	}
	return out
}
