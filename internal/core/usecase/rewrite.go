package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
	"github.com/kirillkom/pageindex-recall/internal/core/ports"
)

const (
	rewriteTemperature    = 0.7
	defaultRewriteTimeout = 15 * time.Second
)

const rewriteSystemPrompt = `You are the query rewrite stage of a production retrieval system.
Your job is not to answer the question. Rewrite the short, vague or conversational user query into a
clear, information-dense query that works well for vector retrieval and reranker relevance scoring.

Rules:
1. Keep the user's original intent. Do not introduce facts that are not implied.
2. Expand concepts with reasonable synonyms and related terms.
3. Favour phrasing that matches technical documents, papers and explanatory text.
4. Do not output explanations, analysis or multiple alternatives.
5. Output exactly one rewritten query.

If the query has three words or fewer, expand it semantically. Disambiguate generic words such as
model, train, data or method for technical document retrieval. Prefer a complete natural-language
sentence over a keyword list. Use one sentence, two at most.`

var errEmptyRewrite = errors.New("rewrite produced empty text")

type RewriteResult struct {
	Query   string
	Applied bool
	// Err explains why the original query was kept. It is nil when the
	// rewrite was applied or intentionally skipped.
	Err error
}

type QueryRewriter struct {
	llm     ports.ChatCompleter
	model   string
	timeout time.Duration
}

func NewQueryRewriter(llm ports.ChatCompleter, model string, timeout time.Duration) *QueryRewriter {
	if timeout <= 0 {
		timeout = defaultRewriteTimeout
	}
	return &QueryRewriter{llm: llm, model: model, timeout: timeout}
}

// Rewrite returns a retrieval-oriented form of the query. Precise mode and
// every failure keep the original text.
func (r *QueryRewriter) Rewrite(ctx context.Context, q domain.Query) RewriteResult {
	if q.Mode == domain.ModePrecise || r == nil || r.llm == nil {
		return RewriteResult{Query: q.Original}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.llm.Complete(callCtx, ports.ChatRequest{
		Model:       r.model,
		Temperature: rewriteTemperature,
		Messages: []ports.ChatMessage{
			{Role: "system", Content: rewriteSystemPrompt},
			{Role: "user", Content: buildRewriteUserPrompt(q.Original, q.DocTypeHint)},
		},
	})
	if err != nil {
		return RewriteResult{Query: q.Original, Err: fmt.Errorf("rewrite completion: %w", err)}
	}

	text, err := parseRewrite(raw)
	if err != nil {
		return RewriteResult{Query: q.Original, Err: err}
	}
	return RewriteResult{Query: text, Applied: true}
}

func buildRewriteUserPrompt(query, docType string) string {
	var hint string
	if docType != "" {
		hint = fmt.Sprintf("\n\n[Important Context]: The user explicitly expects content from document type: '%s'. Please refine the query to imply this context.", docType)
	}
	return "User query:\n" + query + hint + "\n\nOutput the rewritten query:"
}

func parseRewrite(raw string) (string, error) {
	text := strings.NewReplacer(`"`, "", `'`, "").Replace(raw)
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyRewrite
	}
	return text, nil
}
