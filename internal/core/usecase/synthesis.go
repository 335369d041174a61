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
	synthesisTemperature    = 0.6
	defaultSynthesisTimeout = 120 * time.Second
)

const synthesisSystemPrompt = `You are the final answer composer of a retrieval-augmented system.
You do not retrieve, rank or guess. Write the final answer to the user's question strictly from the
retrieved chunks you are given.

Input: the user's original query and retrieved chunks from two sources: [VECTOR] (semantic recall)
and [JSON_Source] (verbatim matches from the original document structure).

Constraints:
1. Use only facts present in the retrieved chunks. Do not add outside knowledge.
   If the evidence is insufficient, say explicitly: "The retrieved content is not sufficient to fully answer this question."
2. Prefer higher-ranked chunks. [JSON_Source] chunks come directly from the original document and carry
   the highest factual weight.
3. You may repair broken lines and merge split sentences. Never guess missing content.

Output: clear, technically accurate Markdown with paragraphs, lists and bold text where useful.
Short quotes are fine; do not copy long passages verbatim.

If every chunk is only weakly related to the query, answer exactly:
"Based on the retrieved documents, this question cannot be answered reliably."`

const synthesisDocTypeConstraint = `

Document type preference:
The user expects the answer to come mainly from documents of type [%s].
1. Prefer content of that type when answering.
2. Content from other types may supplement the answer when it clearly helps.`

var errStreamStopped = errors.New("stream stopped")

type Synthesizer struct {
	streamer     ports.AnswerStreamer
	defaultModel string
	timeout      time.Duration
}

func NewSynthesizer(streamer ports.AnswerStreamer, defaultModel string, timeout time.Duration) *Synthesizer {
	if timeout <= 0 {
		timeout = defaultSynthesisTimeout
	}
	return &Synthesizer{streamer: streamer, defaultModel: defaultModel, timeout: timeout}
}

// Synthesize streams an evidence-grounded answer. onUpdate receives the full
// accumulated summary after every delta that changed it. The returned error
// is domain.ErrRunCancelled when ctx ends mid-stream; other stream failures
// are reported through Summary.Error.
func (s *Synthesizer) Synthesize(
	ctx context.Context,
	q domain.Query,
	model string,
	results []domain.FusedResult,
	onUpdate func(domain.Summary),
) (domain.Summary, error) {
	if model = strings.TrimSpace(model); model == "" {
		model = s.defaultModel
	}
	summary := domain.Summary{Model: model}
	if onUpdate == nil {
		onUpdate = func(domain.Summary) {}
	}
	if err := ctx.Err(); err != nil {
		summary.Truncated = true
		return summary, domain.ErrRunCancelled
	}

	streamCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var reasoning, content strings.Builder
	err := s.streamer.Stream(streamCtx, ports.ChatRequest{
		Model:       model,
		Temperature: synthesisTemperature,
		Messages: []ports.ChatMessage{
			{Role: "system", Content: BuildSynthesisSystemPrompt(q.DocTypeHint)},
			{Role: "user", Content: BuildSynthesisUserPrompt(q.Original, results)},
		},
	}, func(delta domain.StreamDelta) error {
		if ctx.Err() != nil {
			return errStreamStopped
		}
		if delta.Reasoning == "" && delta.Content == "" {
			return nil
		}
		reasoning.WriteString(delta.Reasoning)
		content.WriteString(delta.Content)
		summary.Reasoning = reasoning.String()
		summary.Content = content.String()
		onUpdate(summary)
		return nil
	})

	if ctx.Err() != nil {
		summary.Truncated = true
		onUpdate(summary)
		return summary, domain.ErrRunCancelled
	}
	if err != nil {
		summary.Error = err.Error()
		onUpdate(summary)
	}
	return summary, nil
}

func BuildSynthesisSystemPrompt(docType string) string {
	if docType == "" {
		return synthesisSystemPrompt
	}
	return synthesisSystemPrompt + fmt.Sprintf(synthesisDocTypeConstraint, docType)
}

func BuildSynthesisUserPrompt(query string, results []domain.FusedResult) string {
	var b strings.Builder
	b.WriteString("Query: ")
	b.WriteString(query)
	b.WriteString("\n\nRetrieved Chunks:")
	for _, r := range results {
		fmt.Fprintf(&b, "\n---\n[Rank %d] [Source: %s] (RRF: %.4f)\nSection Path: %s\nContent:\n%s\n",
			r.Rank, r.Source, r.FinalScore, r.Path, r.Content)
	}
	return b.String()
}
