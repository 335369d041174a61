package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/pageindex-recall/internal/infrastructure/resilience"
)

const (
	embeddingsPath      = "/v1/embeddings"
	rerankPath          = "/v1/rerank"
	chatCompletionsPath = "/v1/chat/completions"
)

// Client talks to an OpenAI-compatible gateway. Per-call deadlines come from
// the caller's context; the HTTP client timeout is only a backstop.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	var err error
	if c.executor == nil {
		err = fn(ctx)
	} else {
		err = c.executor.Execute(ctx, operation, fn, classifyGatewayError)
	}
	return wrapTemporaryIfNeeded(operation, err)
}
