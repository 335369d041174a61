package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
)

// statusClientClosedRequest is the nginx convention for a caller that went away.
const statusClientClosedRequest = 499

var errorKinds = []struct {
	kind   error
	status int
	code   string
}{
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrRunNotFound, http.StatusNotFound, "run_not_found"},
	{domain.ErrNoEvidence, http.StatusUnprocessableEntity, "no_evidence"},
	{domain.ErrRunCancelled, statusClientClosedRequest, "run_cancelled"},
	{domain.ErrIndexUnavailable, http.StatusServiceUnavailable, "index_unavailable"},
	{domain.ErrTemporary, http.StatusServiceUnavailable, "temporary"},
	{context.Canceled, statusClientClosedRequest, "run_cancelled"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "deadline_exceeded"},
}

func classifyError(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal"
}
