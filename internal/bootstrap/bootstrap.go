package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/pageindex-recall/internal/config"
	"github.com/kirillkom/pageindex-recall/internal/core/ports"
	"github.com/kirillkom/pageindex-recall/internal/core/usecase"
	"github.com/kirillkom/pageindex-recall/internal/infrastructure/embedcache"
	"github.com/kirillkom/pageindex-recall/internal/infrastructure/llm/openai"
	"github.com/kirillkom/pageindex-recall/internal/infrastructure/pageindex"
	"github.com/kirillkom/pageindex-recall/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pageindex-recall/internal/infrastructure/repository/sqlstore"
	"github.com/kirillkom/pageindex-recall/internal/infrastructure/resilience"
	"github.com/kirillkom/pageindex-recall/internal/infrastructure/segment"
	"github.com/kirillkom/pageindex-recall/internal/observability/metrics"
)

type Options struct {
	Service string
	Logger  *slog.Logger
	// Registerer receives the recall pipeline collectors. Nil disables them.
	Registerer prometheus.Registerer
	// ConnectQueue opens the NATS connection used for worker jobs.
	ConnectQueue bool
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Recall   *usecase.RecallUseCase
	Store    *sqlstore.Store
	Queue    *nats.Queue
	Executor *resilience.Executor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lexicon, err := config.LoadLexicon(cfg.LexiconPath)
	if err != nil {
		return nil, fmt.Errorf("load lexicon: %w", err)
	}

	db, dialect, err := sqlstore.Open(cfg.VectorDSN)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	store := sqlstore.New(db, dialect, logger)
	if err := store.Ping(ctx); err != nil {
		// the vector channel degrades per run; the service can still answer lexically
		logger.Warn("vector_store_unreachable", "dialect", dialect, "error", err)
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg)).WithLogger(logger)

	chatClient := openai.New(cfg.LLMBaseURL, cfg.LLMAPIKey, openai.WithExecutor(executor))
	embedClient := openai.New(cfg.EmbedBaseURL, cfg.EmbedAPIKey, openai.WithExecutor(executor))
	rerankClient := openai.New(cfg.RerankBaseURL, cfg.RerankAPIKey, openai.WithExecutor(executor))
	chat := openai.NewChat(chatClient)

	var embedder ports.Embedder = openai.NewEmbedder(embedClient, cfg.EmbedModel)
	if cfg.EmbedCacheSize > 0 {
		embedder = embedcache.New(embedder, cfg.EmbedModel, cfg.EmbedCacheSize)
	}

	tagger := segment.New()
	if err := tagger.Warm(); err != nil {
		logger.Warn("segmenter_dictionary_unavailable", "error", err)
	}

	var recallMetrics ports.RecallMetrics
	if opts.Registerer != nil {
		recallMetrics = metrics.NewRecallMetrics(opts.Service, opts.Registerer)
	}

	recallUC := usecase.NewRecallUseCase(usecase.RecallDependencies{
		Loader: pageindex.NewCachingLoader(pageindex.NewLoader(), cfg.IndexCacheSz),
		Extractor: usecase.NewKeywordExtractor(tagger, usecase.KeywordOptions{
			PriorityTerms: lexicon.PriorityTerms,
			Stopwords:     lexicon.Stopwords,
			TopN:          lexicon.TopN,
		}),
		Rewriter:    usecase.NewQueryRewriter(chat, cfg.RewriteModel, cfg.RewriteTimeout()),
		Vector:      usecase.NewVectorSearcher(embedder, store, cfg.EmbedTimeout()),
		Reranker:    usecase.NewCandidateReranker(openai.NewReranker(rerankClient, cfg.RerankModel), cfg.RerankTimeout()),
		Synthesizer: usecase.NewSynthesizer(chat, cfg.SummaryModel, cfg.SummaryTimeout()),
		Metrics:     recallMetrics,
		Logger:      logger,
	}, RecallConfig(cfg))

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Recall:   recallUC,
		Store:    store,
		Executor: executor,
	}

	if opts.ConnectQueue {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			EventsSubject:      cfg.NATSEventsSubject,
			MaxInFlight:        cfg.WorkerConcurrency,
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
	}

	app.closeFn = func() {
		if app.Queue != nil {
			app.Queue.Close()
		}
		_ = db.Close()
	}
	return app, nil
}

// RecallConfig maps service settings onto the pipeline policy.
func RecallConfig(cfg config.Config) usecase.RecallConfig {
	fusion := usecase.DefaultFusionPolicy()
	if cfg.FusionRRFK > 0 {
		fusion.K = cfg.FusionRRFK
	}
	if cfg.FusionMaxResults > 0 {
		fusion.MaxResults = cfg.FusionMaxResults
	}
	for _, b := range []struct {
		dst *float64
		val float64
	}{
		{&fusion.PreciseBoost, cfg.FusionPreciseBoost},
		{&fusion.FuzzyBoost, cfg.FusionFuzzyBoost},
		{&fusion.LongFormBoost, cfg.FusionLongFormBoost},
		{&fusion.PreciseIntentBoost, cfg.FusionPreciseIntentBoost},
	} {
		if b.val > 0 {
			*b.dst = b.val
		}
	}

	limits := usecase.DefaultChunkLimits()
	if cfg.ChunkLimitDefault > 0 {
		limits.Default = cfg.ChunkLimitDefault
	}
	if cfg.ChunkLimitLongForm > 0 {
		limits.LongForm = cfg.ChunkLimitLongForm
	}
	if len(cfg.LongFormDocTypes) > 0 {
		limits.LongFormDocTypes = cfg.LongFormDocTypes
		fusion.LongFormDocTypes = cfg.LongFormDocTypes
	}

	return usecase.RecallConfig{
		DefaultIndexPath:    cfg.IndexPath,
		DefaultSummaryModel: cfg.SummaryModel,
		Fusion:              fusion,
		ChunkLimits:         limits,
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.BreakerEnabled = cfg.BreakerEnabled
	rc.Operations = resilience.ParseOperationAttempts(cfg.ResilienceAttempts)
	return rc
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
