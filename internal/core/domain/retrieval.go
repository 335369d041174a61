package domain

import "strings"

type Channel string

const (
	ChannelVector  Channel = "vector"
	ChannelLexical Channel = "lexical"
)

type SourceLabel string

const (
	SourceVector  SourceLabel = "VECTOR"
	SourceLexical SourceLabel = "JSON_Source"
	SourceMixed   SourceLabel = "MIXED (Vec+JSON)"
)

// OriginLexicalNew tags fused entries first seen on the lexical channel.
const OriginLexicalNew = "JSON_New"

type CandidateChunk struct {
	ID           string   `json:"id"`
	Channel      Channel  `json:"channel"`
	Path         string   `json:"path"`
	Content      string   `json:"content"`
	ChannelScore float64  `json:"channel_score"`
	RerankScore  *float64 `json:"rerank_score,omitempty"`
	HitCount     int      `json:"hit_count,omitempty"`

	// RerankText is the "Section Path / Content" block sent to the cross-encoder.
	RerankText string `json:"-"`
}

func (c CandidateChunk) Source() SourceLabel {
	if c.Channel == ChannelLexical {
		return SourceLexical
	}
	return SourceVector
}

type FusedResult struct {
	ID         string      `json:"id"`
	Content    string      `json:"content"`
	Path       string      `json:"path"`
	FinalScore float64     `json:"final_score"`
	Rank       int         `json:"rank"`
	Source     SourceLabel `json:"source"`
	Origin     string      `json:"origin,omitempty"`
}

// StreamDelta is one server-sent chunk of a streamed completion.
type StreamDelta struct {
	Reasoning string
	Content   string
}

// TruncationMarker terminates a summary whose generation was cancelled.
const TruncationMarker = "[generation stopped by user]"

type Summary struct {
	Model     string `json:"model,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Markdown renders reasoning as a quoted block ahead of the answer content.
func (s Summary) Markdown() string {
	var b strings.Builder
	if s.Reasoning != "" {
		b.WriteString("> **Thinking Process:**\n> ")
		b.WriteString(strings.ReplaceAll(s.Reasoning, "\n", "\n> "))
		b.WriteString("\n\n")
	}
	if s.Reasoning != "" && s.Content != "" {
		b.WriteString("---\n\n")
	}
	b.WriteString(s.Content)
	if s.Error != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Summary generation failed: ")
		b.WriteString(s.Error)
	}
	if s.Truncated {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(TruncationMarker)
	}
	return b.String()
}
