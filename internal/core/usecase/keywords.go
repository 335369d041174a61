package usecase

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/pageindex-recall/internal/core/ports"
)

const (
	defaultKeywordTopN = 5

	weightPriority = 3
	weightCode     = 3
	weightNoun     = 2
	weightVerb     = 1
)

var codePattern = regexp.MustCompile(`[A-Za-z]{2,3}\d{3,4}`)

type KeywordOptions struct {
	PriorityTerms []string
	Stopwords     []string
	TopN          int
}

// KeywordExtractor picks the terms used by the lexical channel. Priority
// dictionary hits and code-like tokens outrank tagged nouns, which outrank
// verbs. Output is deterministic for a given query and options.
type KeywordExtractor struct {
	tagger   ports.Tagger
	priority []string
	stop     map[string]struct{}
	topN     int
}

func NewKeywordExtractor(tagger ports.Tagger, opts KeywordOptions) *KeywordExtractor {
	stop := make(map[string]struct{}, len(opts.Stopwords))
	for _, word := range opts.Stopwords {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" {
			stop[word] = struct{}{}
		}
	}
	priority := make([]string, 0, len(opts.PriorityTerms))
	for _, term := range opts.PriorityTerms {
		if term = strings.TrimSpace(term); term != "" {
			priority = append(priority, term)
		}
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = defaultKeywordTopN
	}
	if tagger == nil {
		tagger = whitespaceTagger{}
	}
	return &KeywordExtractor{
		tagger:   tagger,
		priority: priority,
		stop:     stop,
		topN:     topN,
	}
}

type weightedTerm struct {
	term   string
	weight int
}

func (e *KeywordExtractor) Extract(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	queryLower := strings.ToLower(query)
	terms := make([]weightedTerm, 0, 16)
	seenLower := make(map[string]struct{}, 16)
	add := func(term string, weight int) {
		terms = append(terms, weightedTerm{term: term, weight: weight})
		seenLower[strings.ToLower(term)] = struct{}{}
	}

	for _, term := range e.priority {
		if strings.Contains(queryLower, strings.ToLower(term)) {
			add(term, weightPriority)
		}
	}
	for _, code := range codePattern.FindAllString(query, -1) {
		add(code, weightCode)
	}

	for _, token := range e.tagger.Tag(query) {
		word := strings.TrimSpace(token.Text)
		if utf8.RuneCountInString(word) < 2 {
			continue
		}
		lower := strings.ToLower(word)
		if _, stop := e.stop[lower]; stop {
			continue
		}
		if _, seen := seenLower[lower]; seen {
			continue
		}
		switch {
		case strings.HasPrefix(token.Tag, "n") || token.Tag == "eng":
			add(word, weightNoun)
		case strings.HasPrefix(token.Tag, "v"):
			add(word, weightVerb)
		}
	}

	sort.SliceStable(terms, func(i, j int) bool {
		return terms[i].weight > terms[j].weight
	})

	out := make([]string, 0, e.topN)
	distinct := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if _, ok := distinct[t.term]; ok {
			continue
		}
		distinct[t.term] = struct{}{}
		out = append(out, t.term)
		if len(out) == e.topN {
			break
		}
	}
	return out
}

// whitespaceTagger is used when no linguistic tagger is configured; every
// field is treated as a foreign-word noun.
type whitespaceTagger struct{}

func (whitespaceTagger) Tag(text string) []ports.TaggedToken {
	fields := strings.Fields(text)
	out := make([]ports.TaggedToken, 0, len(fields))
	for _, f := range fields {
		out = append(out, ports.TaggedToken{Text: f, Tag: "eng"})
	}
	return out
}
