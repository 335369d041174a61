package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
	"github.com/kirillkom/pageindex-recall/internal/core/ports"
	"github.com/kirillkom/pageindex-recall/internal/observability/metrics"
)

const (
	runIDHeader     = "X-Run-Id"
	maxRequestBytes = 64 << 10
)

// JobPublisher hands recall jobs to the worker fleet.
type JobPublisher interface {
	PublishRecall(ctx context.Context, req domain.RecallRequest) error
	PublishCancel(ctx context.Context, runID string) error
}

type RouterOptions struct {
	AuthToken         string
	RateLimitRPS      float64
	RateLimitBurst    int
	MaxConcurrentRuns int
	QueueWait         time.Duration

	Jobs    JobPublisher
	Metrics *metrics.HTTPServerMetrics
	Health  func(ctx context.Context) error
	Logger  *slog.Logger

	// Breakers and ActiveRuns feed the /healthz report.
	Breakers   func() map[string]string
	ActiveRuns func() int
}

type Router struct {
	recall ports.RecallService
	opts   RouterOptions
	logger *slog.Logger
}

func NewRouter(recall ports.RecallService, opts RouterOptions) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.QueueWait <= 0 {
		opts.QueueWait = 250 * time.Millisecond
	}
	return &Router{recall: recall, opts: opts, logger: logger}
}

func (rt *Router) Handler() http.Handler {
	const service = "recall-api"

	guarded := func(h http.Handler) http.Handler {
		return authMiddleware(h, rt.opts.AuthToken)
	}
	runGate := func(h http.Handler) http.Handler {
		h = backpressureMiddleware(h, rt.opts.MaxConcurrentRuns, rt.opts.QueueWait, rt.reject)
		h = rateLimitMiddleware(h, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, rt.reject)
		return guarded(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
	}
	mux.Handle("POST /v1/recall", runGate(http.HandlerFunc(rt.startRecall)))
	mux.Handle("DELETE /v1/runs/{id}", guarded(http.HandlerFunc(rt.cancelRun)))

	var handler http.Handler = mux
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) reject(reason string) {
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordRejected("recall-api", reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if rt.opts.Breakers != nil {
		if states := rt.opts.Breakers(); len(states) > 0 {
			body["breakers"] = states
		}
	}
	if rt.opts.ActiveRuns != nil {
		body["active_runs"] = rt.opts.ActiveRuns()
	}
	if rt.opts.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.opts.Health(ctx); err != nil {
			body["status"] = "degraded"
			body["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}

type recallRequestBody struct {
	Query        string `json:"query"`
	Mode         string `json:"mode"`
	DocType      string `json:"doc_type"`
	SummaryModel string `json:"summary_model"`
	ChunkLimit   int    `json:"chunk_limit"`
	RunID        string `json:"run_id"`
	Async        bool   `json:"async"`
}

func decodeRecallBody(r io.Reader) (domain.RecallRequest, bool, error) {
	var body recallRequestBody
	dec := json.NewDecoder(io.LimitReader(r, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return domain.RecallRequest{}, false, domain.WrapError(domain.ErrInvalidInput, "decode recall request", err)
	}
	if strings.TrimSpace(body.Query) == "" {
		return domain.RecallRequest{}, false, domain.WrapError(domain.ErrInvalidInput, "decode recall request", errors.New("query is required"))
	}
	if body.ChunkLimit < 0 {
		return domain.RecallRequest{}, false, domain.WrapError(domain.ErrInvalidInput, "decode recall request", errors.New("chunk_limit must not be negative"))
	}
	runID := strings.TrimSpace(body.RunID)
	if runID == "" {
		runID = uuid.NewString()
	}
	return domain.RecallRequest{
		Query:        body.Query,
		Mode:         body.Mode,
		DocType:      body.DocType,
		SummaryModel: body.SummaryModel,
		ChunkLimit:   body.ChunkLimit,
		RunID:        runID,
	}, body.Async, nil
}

func (rt *Router) startRecall(w http.ResponseWriter, r *http.Request) {
	req, async, err := decodeRecallBody(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	if async {
		rt.enqueueRecall(w, r, req)
		return
	}

	stream := newSSEWriter(w, req.RunID)
	if stream == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming is not supported by response writer"})
		return
	}

	outcome, err := rt.recall.Run(r.Context(), req, stream)
	if outcome == nil && !stream.started() {
		writeError(w, err)
		return
	}
	if outcome != nil {
		rt.logger.Info("recall_run_finished",
			"request_id", requestIDFromContext(r.Context()),
			"run_id", outcome.RunID,
			"state", outcome.State,
			"results", len(outcome.Results),
		)
	}
	stream.done()
}

func (rt *Router) enqueueRecall(w http.ResponseWriter, r *http.Request, req domain.RecallRequest) {
	if rt.opts.Jobs == nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "enqueue recall", errors.New("async recall is not enabled")))
		return
	}
	if err := rt.opts.Jobs.PublishRecall(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(runIDHeader, req.RunID)
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": req.RunID, "status": "queued"})
}

func (rt *Router) cancelRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("id"))
	if runID == "" {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "cancel run", errors.New("run id is required")))
		return
	}

	err := rt.recall.Cancel(runID)
	if err == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "cancelling"})
		return
	}
	// the run may be owned by a worker
	if errors.Is(err, domain.ErrRunNotFound) && rt.opts.Jobs != nil {
		if pubErr := rt.opts.Jobs.PublishCancel(r.Context(), runID); pubErr != nil {
			writeError(w, pubErr)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "cancel_broadcast"})
		return
	}
	writeError(w, err)
}

// sseWriter is the EventSink for a streaming request. Headers are written
// with the first event so that errors raised before the run starts can still
// be reported as plain JSON.
type sseWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	runID   string
	opened  bool
	failed  bool
}

func newSSEWriter(w http.ResponseWriter, runID string) *sseWriter {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil
	}
	return &sseWriter{w: w, flusher: flusher, runID: runID}
}

func (s *sseWriter) open() {
	if s.opened {
		return
	}
	s.opened = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set(runIDHeader, s.runID)
	s.w.WriteHeader(http.StatusOK)
}

func (s *sseWriter) Emit(_ context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return errClientGone
	}
	s.open()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		s.failed = true
		return fmt.Errorf("write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

func (s *sseWriter) done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return
	}
	s.open()
	_, _ = io.WriteString(s.w, "data: [DONE]\n\n")
	s.flusher.Flush()
}

var errClientGone = errors.New("client disconnected")

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	status, code := classifyError(err)
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}
