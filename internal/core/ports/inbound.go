package ports

import (
	"context"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
)

// RecallService is the inbound contract for running and cancelling recalls.
type RecallService interface {
	Run(ctx context.Context, req domain.RecallRequest, sink EventSink) (*domain.RunOutcome, error)
	Cancel(runID string) error
}
