package segment

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-ego/gse"

	"github.com/kirillkom/pageindex-recall/internal/core/ports"
)

// Tagger segments mixed Chinese and Latin text with part-of-speech tags in
// the jieba tag set. The dictionary is loaded on first use.
type Tagger struct {
	dictFiles []string

	once    sync.Once
	seg     gse.Segmenter
	loadErr error
}

// New returns a tagger backed by the given dictionary files, or by the
// embedded default dictionary when none are given.
func New(dictFiles ...string) *Tagger {
	files := make([]string, 0, len(dictFiles))
	for _, f := range dictFiles {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	return &Tagger{dictFiles: files}
}

// Warm loads the dictionary eagerly so the first request does not pay for it.
func (t *Tagger) Warm() error {
	t.once.Do(t.load)
	return t.loadErr
}

func (t *Tagger) load() {
	var (
		seg gse.Segmenter
		err error
	)
	if len(t.dictFiles) == 0 {
		// the embedded dictionary does not depend on the module cache being on disk
		seg, err = gse.NewEmbed()
	} else {
		seg, err = gse.New(t.dictFiles...)
	}
	if err != nil {
		t.loadErr = fmt.Errorf("load segmenter dictionary: %w", err)
		return
	}
	t.seg = seg
}

func (t *Tagger) Tag(text string) []ports.TaggedToken {
	if err := t.Warm(); err != nil {
		return fallbackTokens(text)
	}

	// accurate mode: one token per segment, no overlapping sub-words
	segments := t.seg.Pos(text, false)
	out := make([]ports.TaggedToken, 0, len(segments))
	for _, s := range segments {
		word := strings.TrimSpace(s.Text)
		if word == "" {
			continue
		}
		out = append(out, ports.TaggedToken{Text: word, Tag: normalizeTag(word, s.Pos)})
	}
	return out
}

// normalizeTag labels pure ASCII alphanumeric words "eng" as jieba does;
// the dictionary tags them inconsistently.
func normalizeTag(word, tag string) string {
	if isASCIIWord(word) {
		return "eng"
	}
	return strings.ToLower(strings.TrimSpace(tag))
}

func isASCIIWord(word string) bool {
	hasLetter := false
	for _, r := range word {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return hasLetter
}

func fallbackTokens(text string) []ports.TaggedToken {
	fields := strings.Fields(text)
	out := make([]ports.TaggedToken, 0, len(fields))
	for _, f := range fields {
		out = append(out, ports.TaggedToken{Text: f, Tag: "eng"})
	}
	return out
}
