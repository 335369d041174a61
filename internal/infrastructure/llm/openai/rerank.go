package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// maxRerankScanBytes bounds how much of a malformed body the fallback
// extractor looks at.
const maxRerankScanBytes = 1 << 20

var errRerankUnparseable = errors.New("rerank response is not a results object or score array")

type Reranker struct {
	client *Client
	model  string
}

func NewReranker(client *Client, model string) *Reranker {
	return &Reranker{client: client, model: model}
}

// Rerank returns one relevance score per document, in document order.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	request := map[string]any{
		"model":     r.model,
		"query":     query,
		"documents": docs,
	}

	var scores []float64
	err := r.client.execute(ctx, "rerank", func(ctx context.Context) error {
		body, err := r.client.postJSON(ctx, rerankPath, request, "rerank")
		if err != nil {
			return err
		}
		parsed, err := decodeRerankScores(body, len(docs))
		if err != nil {
			return err
		}
		scores = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

type rerankResult struct {
	Index          *int     `json:"index"`
	RelevanceScore *float64 `json:"relevance_score"`
	Score          *float64 `json:"score"`
}

func (r rerankResult) value() float64 {
	switch {
	case r.RelevanceScore != nil:
		return *r.RelevanceScore
	case r.Score != nil:
		return *r.Score
	default:
		return 0
	}
}

// decodeRerankScores accepts {"results":[{index, relevance_score}]} or a flat
// score array. Out-of-range indices are ignored and unlisted documents score
// 0. A body that fails strict decoding is retried once on its outermost JSON
// value.
func decodeRerankScores(body []byte, n int) ([]float64, error) {
	scores, err := decodeRerankStrict(body, n)
	if err == nil {
		return scores, nil
	}
	if inner, ok := outermostJSON(body); ok {
		if scores, innerErr := decodeRerankStrict(inner, n); innerErr == nil {
			return scores, nil
		}
	}
	return nil, fmt.Errorf("decode rerank response: %w", err)
}

func decodeRerankStrict(body []byte, n int) ([]float64, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errRerankUnparseable
	}

	switch trimmed[0] {
	case '{':
		var envelope struct {
			Results []rerankResult `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, err
		}
		if envelope.Results == nil {
			return nil, errRerankUnparseable
		}
		return scoresFromResults(envelope.Results, n), nil
	case '[':
		var flat []float64
		if err := json.Unmarshal(trimmed, &flat); err == nil {
			if len(flat) != n {
				return nil, fmt.Errorf("rerank returned %d scores for %d documents", len(flat), n)
			}
			return flat, nil
		}
		var results []rerankResult
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, err
		}
		return scoresFromResults(results, n), nil
	default:
		return nil, errRerankUnparseable
	}
}

func scoresFromResults(results []rerankResult, n int) []float64 {
	scores := make([]float64, n)
	for i, res := range results {
		idx := i
		if res.Index != nil {
			idx = *res.Index
		}
		if idx < 0 || idx >= n {
			continue
		}
		scores[idx] = res.value()
	}
	return scores
}

func outermostJSON(body []byte) ([]byte, bool) {
	if len(body) > maxRerankScanBytes {
		body = body[:maxRerankScanBytes]
	}
	start := bytes.IndexAny(body, "{[")
	if start < 0 {
		return nil, false
	}
	closer := byte('}')
	if body[start] == '[' {
		closer = ']'
	}
	end := bytes.LastIndexByte(body, closer)
	if end <= start {
		return nil, false
	}
	return body[start : end+1], true
}
