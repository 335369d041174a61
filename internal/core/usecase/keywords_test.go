package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/pageindex-recall/internal/core/ports"
)

func TestKeywordExtractorWeightsAndOrder(t *testing.T) {
	tagger := taggerFake{tokens: []ports.TaggedToken{
		{Text: "check", Tag: "v"},
		{Text: "Air China", Tag: "nt"},
		{Text: "CA1234", Tag: "eng"},
		{Text: "delay", Tag: "n"},
		{Text: "the", Tag: "eng"},
		{Text: "a", Tag: "eng"},
		{Text: "quickly", Tag: "d"},
	}}
	extractor := NewKeywordExtractor(tagger, KeywordOptions{
		PriorityTerms: []string{"Air China", "Lufthansa"},
		Stopwords:     []string{"The"},
	})

	got := extractor.Extract("check Air China CA1234 delay the a quickly")

	assert.Equal(t, []string{"Air China", "CA1234", "delay", "check"}, got)
}

func TestKeywordExtractorIsDeterministic(t *testing.T) {
	tagger := taggerFake{tokens: []ports.TaggedToken{
		{Text: "engine", Tag: "n"},
		{Text: "replace", Tag: "v"},
		{Text: "B737", Tag: "eng"},
		{Text: "fan", Tag: "n"},
	}}
	extractor := NewKeywordExtractor(tagger, KeywordOptions{})

	first := extractor.Extract("replace engine fan on B737")
	for i := 0; i < 20; i++ {
		require.Equal(t, first, extractor.Extract("replace engine fan on B737"))
	}
}

func TestKeywordExtractorTruncatesToTopN(t *testing.T) {
	tagger := taggerFake{tokens: []ports.TaggedToken{
		{Text: "alpha", Tag: "n"},
		{Text: "beta", Tag: "n"},
		{Text: "gamma", Tag: "n"},
	}}
	extractor := NewKeywordExtractor(tagger, KeywordOptions{TopN: 2})

	assert.Equal(t, []string{"alpha", "beta"}, extractor.Extract("alpha beta gamma"))
}

func TestKeywordExtractorSkipsCaseInsensitiveRepeats(t *testing.T) {
	tagger := taggerFake{tokens: []ports.TaggedToken{
		{Text: "ca1234", Tag: "eng"},
		{Text: "manual", Tag: "n"},
	}}
	extractor := NewKeywordExtractor(tagger, KeywordOptions{})

	assert.Equal(t, []string{"CA1234", "manual"}, extractor.Extract("CA1234 manual"))
}

func TestKeywordExtractorEmptyQuery(t *testing.T) {
	extractor := NewKeywordExtractor(taggerFake{}, KeywordOptions{})
	assert.Empty(t, extractor.Extract("   "))
}

func TestKeywordExtractorDefaultTaggerUsesFields(t *testing.T) {
	extractor := NewKeywordExtractor(nil, KeywordOptions{Stopwords: []string{"of"}})
	assert.Equal(t, []string{"torque", "values"}, extractor.Extract("torque values of"))
}
