package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
)

const (
	lexicalMaxResults  = 20
	lexicalMinTextLen  = 10
	lexicalBaseScore   = 10.0
	lexicalHitWeight   = 2.0
	lexicalUnknownNode = "unknown"
)

type LexicalOutcome struct {
	Candidates []domain.CandidateChunk
	Status     string
	Cancelled  bool
}

// SearchLexical walks the structure tree depth-first and scores every node
// whose text contains at least one keyword. It never fails: problems are
// reported through Status with an empty candidate list.
func SearchLexical(ctx context.Context, index *domain.PageIndex, keywords []string) LexicalOutcome {
	if len(keywords) == 0 {
		return LexicalOutcome{Status: "no keywords"}
	}
	if index == nil || len(index.Roots) == 0 {
		return LexicalOutcome{Status: "page index unavailable or empty"}
	}

	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}
	if len(lowered) == 0 {
		return LexicalOutcome{Status: "no keywords"}
	}

	var (
		results   []domain.CandidateChunk
		cancelled bool
	)
	var visit func(node *domain.DocumentNode)
	visit = func(node *domain.DocumentNode) {
		if cancelled || node == nil {
			return
		}
		if ctx.Err() != nil {
			cancelled = true
			return
		}

		textLower := strings.ToLower(node.Text)
		hits := 0
		for _, kw := range lowered {
			if strings.Contains(textLower, kw) {
				hits++
			}
		}
		if hits > 0 && utf8.RuneCountInString(node.Text) > lexicalMinTextLen {
			id := node.ID
			if id == "" {
				id = lexicalUnknownNode
			}
			results = append(results, domain.CandidateChunk{
				ID:           id,
				Channel:      domain.ChannelLexical,
				Path:         node.PathString(),
				Content:      node.Text,
				ChannelScore: lexicalBaseScore + float64(hits)*lexicalHitWeight,
				HitCount:     hits,
			})
		}

		for _, child := range node.Children {
			if ctx.Err() != nil {
				cancelled = true
				return
			}
			visit(child)
		}
	}

	for _, root := range index.Roots {
		visit(root)
		if cancelled {
			break
		}
	}
	if cancelled {
		return LexicalOutcome{Status: "lexical search cancelled", Cancelled: true}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ChannelScore > results[j].ChannelScore
	})
	if len(results) > lexicalMaxResults {
		results = results[:lexicalMaxResults]
	}
	return LexicalOutcome{
		Candidates: results,
		Status:     fmt.Sprintf("lexical hits: %d (keywords: %s)", len(results), strings.Join(keywords, ", ")),
	}
}
