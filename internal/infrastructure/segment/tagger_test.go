package segment

import (
	"strings"
	"testing"

	"github.com/kirillkom/pageindex-recall/internal/core/usecase"
)

func TestNormalizeTag(t *testing.T) {
	cases := []struct {
		word, tag, want string
	}{
		{word: "B737", tag: "x", want: "eng"},
		{word: "APU", tag: "nz", want: "eng"},
		{word: "2024", tag: "m", want: "m"},
		{word: "发动机", tag: "N", want: "n"},
		{word: "检查", tag: " v ", want: "v"},
	}
	for _, tc := range cases {
		if got := normalizeTag(tc.word, tc.tag); got != tc.want {
			t.Fatalf("normalizeTag(%q, %q) = %q, want %q", tc.word, tc.tag, got, tc.want)
		}
	}
}

func TestFallbackTokensSplitsOnSpace(t *testing.T) {
	got := fallbackTokens("engine  start")
	if len(got) != 2 || got[0].Text != "engine" || got[1].Tag != "eng" {
		t.Fatalf("unexpected tokens %+v", got)
	}
}

func TestTaggerFallsBackWhenDictionaryMissing(t *testing.T) {
	tagger := New("/nonexistent/dictionary.txt")
	if err := tagger.Warm(); err == nil {
		t.Skip("segmenter accepted a missing dictionary file")
	}
	got := tagger.Tag("check CA1234")
	if len(got) != 2 || got[1].Text != "CA1234" {
		t.Fatalf("unexpected fallback tokens %+v", got)
	}
}

func TestTaggerSegmentsCompoundWithoutOverlap(t *testing.T) {
	tagger := New()
	if err := tagger.Warm(); err != nil {
		t.Fatalf("embedded dictionary failed to load: %v", err)
	}

	query := "中华人民共和国航空安全规定"
	tokens := tagger.Tag(query)
	if len(tokens) < 2 {
		t.Fatalf("expected the compound to be segmented, got %+v", tokens)
	}

	var joined strings.Builder
	for _, tok := range tokens {
		joined.WriteString(tok.Text)
	}
	if joined.String() != query {
		t.Fatalf("tokens overlap or drop text: %q from %+v", joined.String(), tokens)
	}

	last := tokens[len(tokens)-1]
	if last.Text != "规定" || !(strings.HasPrefix(last.Tag, "n") || strings.HasPrefix(last.Tag, "v")) {
		t.Fatalf("expected trailing content word 规定 tagged as noun or verb, got %+v", last)
	}
}

func TestKeywordExtractorKeepsTrailingContentWords(t *testing.T) {
	extractor := usecase.NewKeywordExtractor(New(), usecase.KeywordOptions{TopN: 5})

	got := extractor.Extract("中华人民共和国航空安全规定")
	found := false
	for _, kw := range got {
		if kw == "规定" {
			found = true
		}
		if kw == "中华" || kw == "共和" {
			t.Fatalf("sub-word fragment %q leaked into keywords %v", kw, got)
		}
	}
	if !found {
		t.Fatalf("expected 规定 among keywords, got %v", got)
	}
}
