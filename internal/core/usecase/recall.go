package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
	"github.com/kirillkom/pageindex-recall/internal/core/ports"
)

type RecallConfig struct {
	DefaultIndexPath    string
	DefaultSummaryModel string
	Fusion              FusionPolicy
	ChunkLimits         ChunkLimits
}

type RecallDependencies struct {
	Loader      ports.PageIndexLoader
	Extractor   *KeywordExtractor
	Rewriter    *QueryRewriter
	Vector      *VectorSearcher
	Reranker    *CandidateReranker
	Synthesizer *Synthesizer
	Registry    *RunRegistry
	Metrics     ports.RecallMetrics
	Logger      *slog.Logger
}

// RecallUseCase runs the hybrid retrieval pipeline: both channels in
// parallel, then fusion, then streamed synthesis. Cancelling the context or
// calling Cancel stops the run at the next checkpoint.
type RecallUseCase struct {
	deps RecallDependencies
	cfg  RecallConfig
	now  func() time.Time
}

func NewRecallUseCase(deps RecallDependencies, cfg RecallConfig) *RecallUseCase {
	if deps.Registry == nil {
		deps.Registry = NewRunRegistry()
	}
	if deps.Metrics == nil {
		deps.Metrics = noopRecallMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Extractor == nil {
		deps.Extractor = NewKeywordExtractor(nil, KeywordOptions{})
	}
	if cfg.Fusion.K <= 0 {
		cfg.Fusion = DefaultFusionPolicy()
	}
	if cfg.ChunkLimits.Default <= 0 {
		cfg.ChunkLimits = DefaultChunkLimits()
	}
	return &RecallUseCase{deps: deps, cfg: cfg, now: time.Now}
}

func (uc *RecallUseCase) Cancel(runID string) error {
	return uc.deps.Registry.Cancel(runID)
}

// ActiveRuns is the number of runs currently registered for cancellation.
func (uc *RecallUseCase) ActiveRuns() int {
	return uc.deps.Registry.Active()
}

type channelResult struct {
	candidates []domain.CandidateChunk
	status     string
}

func (uc *RecallUseCase) Run(ctx context.Context, req domain.RecallRequest, sink ports.EventSink) (*domain.RunOutcome, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("recall: %w: empty query", domain.ErrInvalidInput)
	}
	if req.ChunkLimit < 0 {
		return nil, fmt.Errorf("recall: %w: negative chunk limit", domain.ErrInvalidInput)
	}

	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = uuid.NewString()
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := uc.deps.Registry.Register(runID, cancel); err != nil {
		return nil, err
	}
	defer uc.deps.Registry.Done(runID)

	query := domain.NewQuery(req.Query, domain.ParseMode(req.Mode), req.DocType)
	tracker := newRunTracker(runID, sink, uc.deps.Logger, uc.now)
	outcome := &domain.RunOutcome{RunID: runID}
	started := uc.now()

	finish := func(state domain.RunState, err error) (*domain.RunOutcome, error) {
		if state == domain.StateCancelled {
			err = domain.ErrRunCancelled
		}
		if tErr := tracker.transition(runCtx, state); tErr != nil {
			uc.deps.Logger.Error("recall_state_invalid", "run_id", runID, "error", tErr)
		}
		success := state == domain.StateDone
		tracker.emit(runCtx, domain.Event{Kind: domain.EventFinished, Success: &success})
		uc.deps.Metrics.IncRun(state)
		uc.deps.Metrics.ObserveStage("total", uc.now().Sub(started))
		outcome.State = state
		outcome.Query = *query
		outcome.Err = err
		return outcome, err
	}

	_ = tracker.transition(runCtx, domain.StateLoadingIndex)
	index := uc.loadIndex(runCtx, tracker, req.IndexPath)
	if runCtx.Err() != nil {
		return finish(domain.StateCancelled, nil)
	}

	_ = tracker.transition(runCtx, domain.StateRunning)
	chunkLimit := ResolveChunkLimit(req.ChunkLimit, query.DocTypeHint, uc.cfg.ChunkLimits)
	tracker.info(runCtx, "recall_started", "mode", query.Mode, "doc_type", query.DocTypeHint, "chunk_limit", chunkLimit)

	var lexical, vector channelResult
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		lexical = uc.runLexical(gctx, tracker, query, index)
		return nil
	})
	rewritten := make(chan string, 1)
	g.Go(func() error {
		vector = uc.runVector(gctx, tracker, query, index, chunkLimit, rewritten)
		return nil
	})

	_ = tracker.transition(runCtx, domain.StateJoining)
	_ = g.Wait()
	if text, ok := <-rewritten; ok && text != query.Original {
		_ = query.SetRewritten(text)
	}
	if runCtx.Err() != nil {
		return finish(domain.StateCancelled, nil)
	}
	tracker.info(runCtx, "channels_joined",
		"search_text", query.SearchText(),
		"lexical", len(lexical.candidates),
		"vector", len(vector.candidates),
	)

	uc.deps.Metrics.ObserveCandidates(domain.ChannelLexical, len(lexical.candidates))
	uc.deps.Metrics.ObserveCandidates(domain.ChannelVector, len(vector.candidates))
	if len(lexical.candidates) == 0 && len(vector.candidates) == 0 {
		tracker.warn(runCtx, "recall_no_evidence", "lexical_status", lexical.status, "vector_status", vector.status)
		return finish(domain.StateFailed, domain.ErrNoEvidence)
	}

	_ = tracker.transition(runCtx, domain.StateFusing)
	fuseStart := uc.now()
	boost, reason := uc.cfg.Fusion.LexicalBoost(*query)
	results := Fuse(uc.cfg.Fusion, *query, vector.candidates, lexical.candidates)
	uc.deps.Metrics.ObserveStage("fusion", uc.now().Sub(fuseStart))
	tracker.info(runCtx, "recall_fused", "results", len(results), "lexical_boost", boost, "boost_reason", reason)
	tracker.emit(runCtx, domain.Event{Kind: domain.EventResults, Results: results})
	outcome.Results = results

	_ = tracker.transition(runCtx, domain.StateSynthesizing)
	summary, err := uc.synthesize(runCtx, tracker, *query, req.SummaryModel, results)
	outcome.Summary = summary
	if errors.Is(err, domain.ErrRunCancelled) {
		return finish(domain.StateCancelled, nil)
	}
	return finish(domain.StateDone, nil)
}

func (uc *RecallUseCase) loadIndex(ctx context.Context, tracker *runTracker, path string) *domain.PageIndex {
	if strings.TrimSpace(path) == "" {
		path = uc.cfg.DefaultIndexPath
	}
	if strings.TrimSpace(path) == "" || uc.deps.Loader == nil {
		tracker.warn(ctx, "page_index_skipped", "reason", "no index path configured")
		return nil
	}
	start := uc.now()
	index, err := uc.deps.Loader.Load(ctx, path)
	uc.deps.Metrics.ObserveStage("load_index", uc.now().Sub(start))
	if err != nil {
		uc.deps.Metrics.IncDegraded("load_index")
		tracker.warn(ctx, "page_index_load_failed", "path", path, "error", err)
		return nil
	}
	tracker.info(ctx, "page_index_loaded", "path", path, "nodes", index.Len())
	return index
}

func (uc *RecallUseCase) runLexical(ctx context.Context, tracker *runTracker, q *domain.Query, index *domain.PageIndex) channelResult {
	if index == nil {
		return channelResult{status: "page index unavailable"}
	}
	start := uc.now()
	defer func() { uc.deps.Metrics.ObserveStage("lexical", uc.now().Sub(start)) }()

	keywords := uc.deps.Extractor.Extract(q.Original)
	tracker.info(ctx, "keywords_extracted", "keywords", strings.Join(keywords, ", "))
	out := SearchLexical(ctx, index, keywords)
	if out.Cancelled {
		return channelResult{status: out.Status}
	}
	tracker.info(ctx, "lexical_search_finished", "status", out.Status)
	return channelResult{candidates: out.Candidates, status: out.Status}
}

func (uc *RecallUseCase) runVector(
	ctx context.Context,
	tracker *runTracker,
	q *domain.Query,
	index *domain.PageIndex,
	chunkLimit int,
	rewritten chan<- string,
) channelResult {
	defer close(rewritten)

	searchText := q.Original
	if uc.deps.Rewriter != nil && q.Mode != domain.ModePrecise {
		start := uc.now()
		res := uc.deps.Rewriter.Rewrite(ctx, *q)
		uc.deps.Metrics.ObserveStage("rewrite", uc.now().Sub(start))
		if ctx.Err() != nil {
			return channelResult{status: "cancelled"}
		}
		if res.Err != nil {
			uc.deps.Metrics.IncDegraded("rewrite")
			tracker.warn(ctx, "query_rewrite_failed", "error", res.Err)
		} else if res.Applied {
			tracker.info(ctx, "query_rewritten", "original", q.Original, "rewritten", res.Query)
		}
		searchText = res.Query
	} else if q.Mode == domain.ModePrecise {
		tracker.info(ctx, "query_rewrite_skipped", "reason", "precise mode")
	}
	rewritten <- searchText

	if uc.deps.Vector == nil {
		return channelResult{status: "vector channel not configured"}
	}

	start := uc.now()
	out := uc.deps.Vector.Search(ctx, index, searchText, chunkLimit)
	uc.deps.Metrics.ObserveStage("vector", uc.now().Sub(start))
	if out.Cancelled {
		return channelResult{status: out.Status}
	}
	if out.Err != nil {
		uc.deps.Metrics.IncDegraded("vector")
		tracker.warn(ctx, "vector_search_failed", "status", out.Status, "error", out.Err)
		return channelResult{status: out.Status}
	}
	tracker.info(ctx, "vector_search_finished", "status", out.Status)

	candidates := out.Candidates
	if len(candidates) > 0 && uc.deps.Reranker != nil {
		start := uc.now()
		reranked, err := uc.deps.Reranker.Rerank(ctx, searchText, q.DocTypeHint, candidates)
		uc.deps.Metrics.ObserveStage("rerank", uc.now().Sub(start))
		if ctx.Err() != nil {
			return channelResult{status: "cancelled"}
		}
		if err != nil {
			uc.deps.Metrics.IncDegraded("rerank")
			tracker.warn(ctx, "rerank_failed", "error", err, "candidates", len(candidates))
		} else {
			tracker.info(ctx, "rerank_finished", "candidates", len(reranked))
		}
		candidates = reranked
	}
	return channelResult{candidates: candidates, status: out.Status}
}

func (uc *RecallUseCase) synthesize(
	ctx context.Context,
	tracker *runTracker,
	q domain.Query,
	model string,
	results []domain.FusedResult,
) (*domain.Summary, error) {
	if uc.deps.Synthesizer == nil {
		tracker.warn(ctx, "synthesis_skipped", "reason", "no answer streamer configured")
		return nil, nil
	}
	if strings.TrimSpace(model) == "" {
		model = uc.cfg.DefaultSummaryModel
	}
	start := uc.now()
	reasoningLogged := false
	summary, err := uc.deps.Synthesizer.Synthesize(ctx, q, model, results, func(s domain.Summary) {
		if s.Reasoning != "" && !reasoningLogged {
			reasoningLogged = true
			tracker.info(ctx, "synthesis_reasoning_started")
		}
		snapshot := s
		tracker.emit(ctx, domain.Event{Kind: domain.EventSummary, Summary: &snapshot, Message: s.Markdown()})
	})
	uc.deps.Metrics.ObserveStage("synthesis", uc.now().Sub(start))
	if err != nil {
		tracker.warn(ctx, "synthesis_stopped", "error", err)
		return &summary, err
	}
	if summary.Error != "" {
		uc.deps.Metrics.IncDegraded("synthesis")
		tracker.warn(ctx, "synthesis_failed", "model", summary.Model, "error", summary.Error)
	} else {
		tracker.info(ctx, "synthesis_finished", "model", summary.Model)
	}
	return &summary, nil
}

type noopRecallMetrics struct{}

func (noopRecallMetrics) ObserveStage(string, time.Duration) {}
func (noopRecallMetrics) ObserveCandidates(domain.Channel, int) {}
func (noopRecallMetrics) IncDegraded(string) {}
func (noopRecallMetrics) IncRun(domain.RunState) {}
