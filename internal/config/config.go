package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort           string
	APIMaxConnections int
	LogLevel          string

	IndexPath    string
	VectorDSN    string
	LexiconPath  string
	IndexCacheSz int

	LLMBaseURL     string
	LLMAPIKey      string
	EmbedBaseURL   string
	EmbedAPIKey    string
	EmbedModel     string
	RerankBaseURL  string
	RerankAPIKey   string
	RerankModel    string
	RewriteModel   string
	SummaryModel   string
	EmbedCacheSize int

	RewriteTimeoutSeconds int
	EmbedTimeoutSeconds   int
	RerankTimeoutSeconds  int
	SummaryTimeoutSeconds int

	FusionRRFK               int
	FusionPreciseBoost       float64
	FusionFuzzyBoost         float64
	FusionLongFormBoost      float64
	FusionPreciseIntentBoost float64
	FusionMaxResults         int
	ChunkLimitDefault        int
	ChunkLimitLongForm       int
	LongFormDocTypes         []string

	NATSURL           string
	NATSSubject       string
	NATSEventsSubject string
	WorkerConcurrency int
	WorkerMetricsPort string

	APIAuthToken       string
	RateLimitRPS       float64
	RateLimitBurst     int
	MaxConcurrentRuns  int
	ResilienceAttempts string
	BreakerEnabled     bool
}

func Load() Config {
	llmURL := mustEnv("RECALL_LLM_URL", "http://localhost:8000")
	llmKey := mustEnv("RECALL_LLM_API_KEY", "")
	return Config{
		APIPort:           mustEnv("API_PORT", "8080"),
		APIMaxConnections: mustEnvInt("API_MAX_CONNECTIONS", 256),
		LogLevel:          mustEnv("LOG_LEVEL", "info"),

		IndexPath:    mustEnv("RECALL_INDEX_PATH", "./data/structure.json"),
		VectorDSN:    mustEnv("RECALL_VECTOR_DSN", "./data/vectors.db"),
		LexiconPath:  mustEnv("RECALL_LEXICON_PATH", ""),
		IndexCacheSz: mustEnvInt("RECALL_INDEX_CACHE_SIZE", 8),

		LLMBaseURL:     llmURL,
		LLMAPIKey:      llmKey,
		EmbedBaseURL:   mustEnv("RECALL_EMBED_URL", llmURL),
		EmbedAPIKey:    mustEnv("RECALL_EMBED_API_KEY", llmKey),
		EmbedModel:     mustEnv("RECALL_EMBED_MODEL", "bge-m3"),
		RerankBaseURL:  mustEnv("RECALL_RERANK_URL", llmURL),
		RerankAPIKey:   mustEnv("RECALL_RERANK_API_KEY", llmKey),
		RerankModel:    mustEnv("RECALL_RERANK_MODEL", "bge-reranker-v2-m3"),
		RewriteModel:   mustEnv("RECALL_REWRITE_MODEL", "qwen2.5-7b-instruct"),
		SummaryModel:   mustEnv("RECALL_SUMMARY_MODEL", "deepseek-r1"),
		EmbedCacheSize: mustEnvInt("RECALL_EMBED_CACHE_SIZE", 512),

		RewriteTimeoutSeconds: mustEnvInt("RECALL_REWRITE_TIMEOUT_SECONDS", 15),
		EmbedTimeoutSeconds:   mustEnvInt("RECALL_EMBED_TIMEOUT_SECONDS", 30),
		RerankTimeoutSeconds:  mustEnvInt("RECALL_RERANK_TIMEOUT_SECONDS", 120),
		SummaryTimeoutSeconds: mustEnvInt("RECALL_SUMMARY_TIMEOUT_SECONDS", 120),

		FusionRRFK:               mustEnvInt("RECALL_FUSION_RRF_K", 60),
		FusionPreciseBoost:       mustEnvFloat("RECALL_FUSION_PRECISE_BOOST", 5),
		FusionFuzzyBoost:         mustEnvFloat("RECALL_FUSION_FUZZY_BOOST", 0.5),
		FusionLongFormBoost:      mustEnvFloat("RECALL_FUSION_LONG_FORM_BOOST", 0.5),
		FusionPreciseIntentBoost: mustEnvFloat("RECALL_FUSION_PRECISE_INTENT_BOOST", 3),
		FusionMaxResults:         mustEnvInt("RECALL_FUSION_MAX_RESULTS", 12),
		ChunkLimitDefault:        mustEnvInt("RECALL_CHUNK_LIMIT", 40),
		ChunkLimitLongForm:       mustEnvInt("RECALL_CHUNK_LIMIT_LONG_FORM", 25),
		LongFormDocTypes:         mustEnvList("RECALL_LONG_FORM_DOC_TYPES", "书籍/教材,长篇论文,book,long-paper"),

		NATSURL:           mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject:       mustEnv("RECALL_NATS_SUBJECT", "recall.jobs"),
		NATSEventsSubject: mustEnv("RECALL_NATS_EVENTS_SUBJECT", "recall.events"),
		WorkerConcurrency: mustEnvInt("WORKER_CONCURRENCY", 4),
		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),

		APIAuthToken:       mustEnv("API_AUTH_TOKEN", ""),
		RateLimitRPS:       mustEnvFloat("API_RATE_LIMIT_RPS", 5),
		RateLimitBurst:     mustEnvInt("API_RATE_LIMIT_BURST", 10),
		MaxConcurrentRuns:  mustEnvInt("API_MAX_CONCURRENT_RUNS", 16),
		ResilienceAttempts: mustEnv("RESILIENCE_OPERATION_ATTEMPTS", ""),
		BreakerEnabled:     mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c Config) RewriteTimeout() time.Duration { return seconds(c.RewriteTimeoutSeconds) }
func (c Config) EmbedTimeout() time.Duration   { return seconds(c.EmbedTimeoutSeconds) }
func (c Config) RerankTimeout() time.Duration  { return seconds(c.RerankTimeoutSeconds) }
func (c Config) SummaryTimeout() time.Duration { return seconds(c.SummaryTimeoutSeconds) }

// Lexicon is the optional YAML file feeding the keyword extractor.
type Lexicon struct {
	PriorityTerms []string `yaml:"priority_terms"`
	Stopwords     []string `yaml:"stopwords"`
	TopN          int      `yaml:"top_n"`
}

// LoadLexicon reads the lexicon file. An empty path yields an empty lexicon.
func LoadLexicon(path string) (Lexicon, error) {
	if strings.TrimSpace(path) == "" {
		return Lexicon{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("read lexicon: %w", err)
	}
	return ParseLexicon(data)
}

func ParseLexicon(data []byte) (Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return Lexicon{}, fmt.Errorf("parse lexicon: %w", err)
	}
	if lex.TopN < 0 {
		return Lexicon{}, fmt.Errorf("parse lexicon: top_n must not be negative")
	}
	return lex, nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvList(key, fallback string) []string {
	var out []string
	for _, item := range strings.Split(mustEnv(key, fallback), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
