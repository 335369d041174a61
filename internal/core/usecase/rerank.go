package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
	"github.com/kirillkom/pageindex-recall/internal/core/ports"
)

const defaultRerankTimeout = 120 * time.Second

type CandidateReranker struct {
	reranker ports.Reranker
	timeout  time.Duration
}

func NewCandidateReranker(reranker ports.Reranker, timeout time.Duration) *CandidateReranker {
	if timeout <= 0 {
		timeout = defaultRerankTimeout
	}
	return &CandidateReranker{reranker: reranker, timeout: timeout}
}

// Rerank reorders vector candidates by cross-encoder relevance. On failure it
// returns the candidates in their incoming order together with the cause.
func (r *CandidateReranker) Rerank(ctx context.Context, query, docType string, candidates []domain.CandidateChunk) ([]domain.CandidateChunk, error) {
	if len(candidates) == 0 || r == nil || r.reranker == nil {
		return candidates, nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.RerankText
		if docs[i] == "" {
			docs[i] = rerankText(c.Path, c.Content)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	scores, err := r.reranker.Rerank(callCtx, annotateRerankQuery(query, docType), docs)
	if err != nil {
		return candidates, fmt.Errorf("rerank: %w", err)
	}
	if len(scores) != len(candidates) {
		return candidates, fmt.Errorf("rerank: got %d scores for %d documents", len(scores), len(candidates))
	}

	out := make([]domain.CandidateChunk, len(candidates))
	copy(out, candidates)
	for i := range out {
		score := scores[i]
		out[i].RerankScore = &score
	}
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].RerankScore > *out[j].RerankScore
	})
	return out, nil
}

func annotateRerankQuery(query, docType string) string {
	if docType == "" {
		return query
	}
	return fmt.Sprintf("%s (Prefer document type: %s)", query, docType)
}
