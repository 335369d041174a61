package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
	"github.com/kirillkom/pageindex-recall/internal/core/ports"
	"github.com/kirillkom/pageindex-recall/internal/infrastructure/resilience"
)

func TestEmbedderSendsBearerAndModel(t *testing.T) {
	var auth string
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != embeddingsPath {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "secret"), "bge-m3")
	vector, err := embedder.EmbedQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vector) != 3 {
		t.Fatalf("expected 3 dims, got %d", len(vector))
	}
	if auth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if payload["model"] != "bge-m3" {
		t.Fatalf("unexpected model %v", payload["model"])
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewEmbedder(New(server.URL, ""), "m").EmbedQuery(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to be classified temporary, got %v", err)
	}
}

func TestRerankerParsesResultsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"index":2,"relevance_score":0.9},{"index":0,"relevance_score":0.4},{"index":7,"relevance_score":1}]}`))
	}))
	defer server.Close()

	scores, err := NewReranker(New(server.URL, ""), "bge-reranker").Rerank(context.Background(), "q", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	want := []float64{0.4, 0, 0.9}
	for i := range want {
		if scores[i] != want[i] {
			t.Fatalf("score %d: expected %v, got %v", i, want[i], scores[i])
		}
	}
}

func TestRerankerServerErrorIsReturned(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.DefaultConfig())
	_, err := NewReranker(New(server.URL, "", WithExecutor(exec)), "m").Rerank(context.Background(), "q", []string{"a"})
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 status error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single-shot call, got %d", calls)
	}
}

func TestDecodeRerankScores(t *testing.T) {
	cases := []struct {
		name string
		body string
		n    int
		want []float64
	}{
		{name: "flat array", body: `[0.2, 0.8]`, n: 2, want: []float64{0.2, 0.8}},
		{name: "array of results", body: `[{"index":1,"score":0.5}]`, n: 2, want: []float64{0, 0.5}},
		{name: "wrapped in noise", body: "garbage {\"results\":[{\"index\":0,\"relevance_score\":0.3}]} trailing", n: 1, want: []float64{0.3}},
	}
	for _, tc := range cases {
		got, err := decodeRerankScores([]byte(tc.body), tc.n)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: score %d expected %v got %v", tc.name, i, tc.want[i], got[i])
			}
		}
	}

	if _, err := decodeRerankScores([]byte(`{"status":"ok"}`), 1); err == nil {
		t.Fatalf("expected error for body without scores")
	}
	if _, err := decodeRerankScores([]byte(`[0.1]`), 2); err == nil {
		t.Fatalf("expected error for short flat array")
	}
}

func TestChatCompleteReturnsTrimmedContent(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  rewritten  "}}]}`))
	}))
	defer server.Close()

	out, err := NewChat(New(server.URL, "")).Complete(context.Background(), ports.ChatRequest{
		Model:       "DeepSeek-V3",
		Temperature: 0.7,
		Messages:    []ports.ChatMessage{{Role: "user", Content: "q"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "rewritten" {
		t.Fatalf("unexpected content %q", out)
	}
	if payload["stream"] != false || payload["temperature"] != 0.7 {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestChatStreamParsesDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(strings.Join([]string{
			`data: {"choices":[{"delta":{"reasoning_content":"think"}}]}`,
			``,
			`: keep-alive`,
			`data: not-json`,
			`data: {"choices":[{"delta":{"content":"Hello"}}]}`,
			`data: {"choices":[{"delta":{"content":" world"}}]}`,
			`data: [DONE]`,
			`data: {"choices":[{"delta":{"content":"ignored"}}]}`,
		}, "\n")))
	}))
	defer server.Close()

	var deltas []domain.StreamDelta
	err := NewChat(New(server.URL, "")).Stream(context.Background(), ports.ChatRequest{Model: "r1"}, func(d domain.StreamDelta) error {
		deltas = append(deltas, d)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if len(deltas) != 3 {
		t.Fatalf("expected 3 deltas, got %d", len(deltas))
	}
	if deltas[0].Reasoning != "think" || deltas[1].Content != "Hello" || deltas[2].Content != " world" {
		t.Fatalf("unexpected deltas %+v", deltas)
	}
}

func TestChatStreamStopsWhenCallbackFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\ndata: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n"))
	}))
	defer server.Close()

	errStop := errors.New("stop")
	calls := 0
	err := NewChat(New(server.URL, "")).Stream(context.Background(), ports.ChatRequest{}, func(domain.StreamDelta) error {
		calls++
		return errStop
	})
	if !errors.Is(err, errStop) || calls != 1 {
		t.Fatalf("expected stop after first delta, calls=%d err=%v", calls, err)
	}
}

func TestUnauthorizedIsMapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewChat(New(server.URL, "wrong")).Complete(context.Background(), ports.ChatRequest{})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
