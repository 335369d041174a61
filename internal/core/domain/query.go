package domain

import (
	"errors"
	"strings"
)

type Mode string

const (
	ModeSmart   Mode = "smart"
	ModePrecise Mode = "precise"
	ModeFuzzy   Mode = "fuzzy"
)

// ParseMode maps free-form input onto a search mode; anything unknown is smart.
func ParseMode(raw string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModePrecise:
		return ModePrecise
	case ModeFuzzy:
		return ModeFuzzy
	default:
		return ModeSmart
	}
}

var errRewrittenAlreadySet = errors.New("rewritten query already set")

type Query struct {
	Original    string `json:"original"`
	Rewritten   string `json:"rewritten,omitempty"`
	Mode        Mode   `json:"mode"`
	DocTypeHint string `json:"doc_type_hint,omitempty"`

	rewrittenSet bool
}

func NewQuery(original string, mode Mode, docType string) *Query {
	return &Query{
		Original:    strings.TrimSpace(original),
		Mode:        mode,
		DocTypeHint: NormalizeDocType(docType),
	}
}

// SetRewritten records the rewriter output. It may be called once per run.
func (q *Query) SetRewritten(text string) error {
	if q.rewrittenSet {
		return errRewrittenAlreadySet
	}
	q.rewrittenSet = true
	q.Rewritten = strings.TrimSpace(text)
	return nil
}

// SearchText is the text used for embedding and reranking.
func (q *Query) SearchText() string {
	if q.Rewritten != "" {
		return q.Rewritten
	}
	return q.Original
}

// NormalizeDocType returns "" for the "no preference" spellings.
func NormalizeDocType(raw string) string {
	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(trimmed) {
	case "", "unspecified", "any", "none", "不指定类型":
		return ""
	default:
		return trimmed
	}
}

type RecallRequest struct {
	Query        string `json:"query"`
	Mode         string `json:"mode,omitempty"`
	DocType      string `json:"doc_type,omitempty"`
	SummaryModel string `json:"summary_model,omitempty"`
	IndexPath    string `json:"index_path,omitempty"`
	ChunkLimit   int    `json:"chunk_limit,omitempty"`
	RunID        string `json:"run_id,omitempty"`
}
