package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
)

var preciseIntentPattern = regexp.MustCompile(`[A-Z]{2,3}\d{3,4}`)

// FusionPolicy holds the reciprocal-rank-fusion constants and the lexical
// channel boost multipliers.
type FusionPolicy struct {
	K                  int
	PreciseBoost       float64
	FuzzyBoost         float64
	LongFormBoost      float64
	PreciseIntentBoost float64
	DefaultBoost       float64
	MaxResults         int
	LongFormDocTypes   []string
}

func DefaultFusionPolicy() FusionPolicy {
	return FusionPolicy{
		K:                  60,
		PreciseBoost:       5,
		FuzzyBoost:         0.5,
		LongFormBoost:      0.5,
		PreciseIntentBoost: 3,
		DefaultBoost:       1,
		MaxResults:         12,
		LongFormDocTypes:   DefaultChunkLimits().LongFormDocTypes,
	}
}

// HasPreciseIntent reports whether the query names a code such as a flight
// number or part designation.
func HasPreciseIntent(query string) bool {
	return preciseIntentPattern.MatchString(query)
}

// LexicalBoost returns the multiplier applied to lexical RRF contributions
// and a short reason for logging.
func (p FusionPolicy) LexicalBoost(q domain.Query) (float64, string) {
	switch q.Mode {
	case domain.ModePrecise:
		return p.PreciseBoost, "precise mode"
	case domain.ModeFuzzy:
		return p.FuzzyBoost, "fuzzy mode"
	}
	if isLongFormDocType(q.DocTypeHint, p.LongFormDocTypes) {
		return p.LongFormBoost, "long-form document type"
	}
	if HasPreciseIntent(q.Original) {
		return p.PreciseIntentBoost, "precise intent detected"
	}
	return p.DefaultBoost, "default"
}

type fusionEntry struct {
	chunk  domain.CandidateChunk
	score  float64
	source domain.SourceLabel
	origin string
}

// Fuse merges the two ranked channels with boosted reciprocal rank fusion,
// drops entries whose normalized content repeats a higher-ranked entry and
// assigns ranks 1..n to the first MaxResults survivors. Equal scores keep
// accumulation order: vector ids first, then lexical-only ids.
func Fuse(policy FusionPolicy, q domain.Query, vector, lexical []domain.CandidateChunk) []domain.FusedResult {
	k := policy.K
	if k <= 0 {
		k = DefaultFusionPolicy().K
	}
	boost, _ := policy.LexicalBoost(q)

	entries := make([]*fusionEntry, 0, len(vector)+len(lexical))
	byID := make(map[string]*fusionEntry, len(vector)+len(lexical))

	for rank, c := range vector {
		e, ok := byID[c.ID]
		if !ok {
			e = &fusionEntry{chunk: c, source: c.Source()}
			byID[c.ID] = e
			entries = append(entries, e)
		} else {
			e.chunk = c
		}
		e.score += 1.0 / float64(k+rank+1)
	}

	for rank, c := range lexical {
		e, ok := byID[c.ID]
		if !ok {
			e = &fusionEntry{chunk: c, source: c.Source(), origin: domain.OriginLexicalNew}
			byID[c.ID] = e
			entries = append(entries, e)
		}
		e.score += boost * (1.0 / float64(k+rank+1))
		if e.source != domain.SourceLexical {
			e.source = domain.SourceMixed
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].score > entries[j].score
	})

	maxResults := policy.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultFusionPolicy().MaxResults
	}

	out := make([]domain.FusedResult, 0, min(len(entries), maxResults))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		fp := ContentFingerprint(e.chunk.Content)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, domain.FusedResult{
			ID:         e.chunk.ID,
			Content:    e.chunk.Content,
			Path:       e.chunk.Path,
			FinalScore: e.score,
			Source:     e.source,
			Origin:     e.origin,
		})
	}

	if len(out) > maxResults {
		out = out[:maxResults]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// ContentFingerprint is the SHA-256 of the trimmed, lower-cased content.
func ContentFingerprint(content string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(content))))
	return hex.EncodeToString(sum[:])
}
