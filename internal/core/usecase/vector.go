package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
	"github.com/kirillkom/pageindex-recall/internal/core/ports"
)

const defaultEmbedTimeout = 30 * time.Second

// ChunkLimits bounds how many vector candidates reach the reranker.
type ChunkLimits struct {
	Default          int
	LongForm         int
	LongFormDocTypes []string
}

func DefaultChunkLimits() ChunkLimits {
	return ChunkLimits{
		Default:          40,
		LongForm:         25,
		LongFormDocTypes: []string{"书籍/教材", "长篇论文", "book", "long-paper"},
	}
}

// ResolveChunkLimit picks the vector truncation size. An explicit positive
// value always wins.
func ResolveChunkLimit(explicit int, docType string, limits ChunkLimits) int {
	if explicit > 0 {
		return explicit
	}
	if isLongFormDocType(docType, limits.LongFormDocTypes) && limits.LongForm > 0 {
		return limits.LongForm
	}
	if limits.Default > 0 {
		return limits.Default
	}
	return DefaultChunkLimits().Default
}

func isLongFormDocType(docType string, longForm []string) bool {
	if docType == "" {
		return false
	}
	for _, t := range longForm {
		if strings.EqualFold(strings.TrimSpace(t), docType) {
			return true
		}
	}
	return false
}

// CosineSimilarity returns 0 for mismatched dimensions, zero norms and
// non-finite results.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	return sim
}

type VectorOutcome struct {
	Candidates []domain.CandidateChunk
	Scanned    int
	Status     string
	Cancelled  bool
	// Err is set when the channel degraded to empty.
	Err error
}

type VectorSearcher struct {
	embedder     ports.Embedder
	store        ports.VectorStore
	embedTimeout time.Duration
}

func NewVectorSearcher(embedder ports.Embedder, store ports.VectorStore, embedTimeout time.Duration) *VectorSearcher {
	if embedTimeout <= 0 {
		embedTimeout = defaultEmbedTimeout
	}
	return &VectorSearcher{embedder: embedder, store: store, embedTimeout: embedTimeout}
}

type scoredRow struct {
	sectionID string
	score     float64
}

// Search embeds queryText, ranks every stored vector by cosine similarity and
// resolves the top chunkLimit rows to passages. Failures yield an empty
// channel with Err set.
func (s *VectorSearcher) Search(ctx context.Context, index *domain.PageIndex, queryText string, chunkLimit int) VectorOutcome {
	if s == nil || s.embedder == nil || s.store == nil {
		return VectorOutcome{Status: "vector channel not configured"}
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	queryVector, err := s.embedder.EmbedQuery(embedCtx, queryText)
	cancel()
	if ctx.Err() != nil {
		return VectorOutcome{Status: "vector search cancelled", Cancelled: true}
	}
	if err != nil {
		return VectorOutcome{Status: "embedding failed", Err: fmt.Errorf("embed query: %w", err)}
	}
	if len(queryVector) == 0 {
		return VectorOutcome{Status: "embedding failed", Err: errors.New("embed query: empty vector")}
	}

	rows := make([]scoredRow, 0, 256)
	err = s.store.ScanVectors(ctx, func(row ports.VectorRow) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		sectionID := row.SectionID
		if sectionID == "" {
			sectionID = row.ID
		}
		rows = append(rows, scoredRow{sectionID: sectionID, score: CosineSimilarity(queryVector, row.Embedding)})
		return nil
	})
	if ctx.Err() != nil {
		return VectorOutcome{Status: "vector search cancelled", Cancelled: true}
	}
	if err != nil {
		return VectorOutcome{Status: "vector store unavailable", Err: fmt.Errorf("scan vectors: %w", err)}
	}

	scanned := len(rows)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].score > rows[j].score
	})
	if chunkLimit > 0 && len(rows) > chunkLimit {
		rows = rows[:chunkLimit]
	}

	candidates := make([]domain.CandidateChunk, 0, len(rows))
	for _, row := range rows {
		if ctx.Err() != nil {
			return VectorOutcome{Status: "vector search cancelled", Cancelled: true}
		}
		candidate, ok, err := s.resolve(ctx, index, row)
		if err != nil {
			if ctx.Err() != nil {
				return VectorOutcome{Status: "vector search cancelled", Cancelled: true}
			}
			return VectorOutcome{Status: "fallback lookup failed", Err: fmt.Errorf("resolve %s: %w", row.sectionID, err)}
		}
		if ok {
			candidates = append(candidates, candidate)
		}
	}

	return VectorOutcome{
		Candidates: candidates,
		Scanned:    scanned,
		Status:     fmt.Sprintf("vector candidates: %d of %d scanned (limit %d)", len(candidates), scanned, chunkLimit),
	}
}

func (s *VectorSearcher) resolve(ctx context.Context, index *domain.PageIndex, row scoredRow) (domain.CandidateChunk, bool, error) {
	if node, ok := index.Node(row.sectionID); ok {
		path := node.PathString()
		content := node.Text
		if node.Summary != "" {
			content = "[Summary]\n" + node.Summary + "\n\n[Text]\n" + node.Text
		}
		return domain.CandidateChunk{
			ID:           row.sectionID,
			Channel:      domain.ChannelVector,
			Path:         path,
			Content:      content,
			ChannelScore: row.score,
			RerankText:   rerankText(path, node.Text),
		}, true, nil
	}

	doc, ok, err := s.store.LookupFallback(ctx, row.sectionID)
	if err != nil || !ok {
		return domain.CandidateChunk{}, false, err
	}
	content := "[Summary]: " + doc.EmbeddingText + "\n\n[Raw]: " + doc.OriginalSnippet
	return domain.CandidateChunk{
		ID:           row.sectionID,
		Channel:      domain.ChannelVector,
		Path:         doc.SectionPath,
		Content:      content,
		ChannelScore: row.score,
		RerankText:   rerankText(doc.SectionPath, content),
	}, true, nil
}

func rerankText(path, content string) string {
	return "Section Path: " + path + "\nContent: " + content
}
