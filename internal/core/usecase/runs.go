package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
)

// RunRegistry tracks cancel functions of in-flight runs by id.
type RunRegistry struct {
	mu   sync.Mutex
	runs map[string]context.CancelFunc
}

func NewRunRegistry() *RunRegistry {
	return &RunRegistry{runs: make(map[string]context.CancelFunc)}
}

func (r *RunRegistry) Register(runID string, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[runID]; exists {
		return fmt.Errorf("run %s already active: %w", runID, domain.ErrInvalidInput)
	}
	r.runs[runID] = cancel
	return nil
}

func (r *RunRegistry) Cancel(runID string) error {
	r.mu.Lock()
	cancel, ok := r.runs[runID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("cancel run %s: %w", runID, domain.ErrRunNotFound)
	}
	cancel()
	return nil
}

func (r *RunRegistry) Done(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, runID)
}

func (r *RunRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
