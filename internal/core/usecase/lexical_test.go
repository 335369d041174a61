package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
)

func lexicalFixture() *domain.PageIndex {
	return domain.NewPageIndex(withPaths(
		node("1", "Chapter 1", "Engine start procedure for the APU unit",
			node("1.1", "Checks", "APU bleed valve check and engine start sequence"),
			node("1.2", "Short", "APU"),
		),
		node("", "Appendix", "Engine parts catalogue overview page"),
	))
}

func TestSearchLexicalScoresByHitCount(t *testing.T) {
	out := SearchLexical(context.Background(), lexicalFixture(), []string{"engine", "APU"})
	if out.Cancelled {
		t.Fatalf("unexpected cancellation")
	}
	if len(out.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(out.Candidates))
	}

	first := out.Candidates[0]
	if first.ID != "1" || first.ChannelScore != 14 || first.HitCount != 2 {
		t.Fatalf("unexpected first candidate: %+v", first)
	}
	if out.Candidates[1].ID != "1.1" {
		t.Fatalf("expected stable order for equal scores, got %s", out.Candidates[1].ID)
	}
	if out.Candidates[1].Path != "Chapter 1 > Checks" {
		t.Fatalf("unexpected path %q", out.Candidates[1].Path)
	}
	last := out.Candidates[2]
	if last.ID != "unknown" || last.ChannelScore != 12 {
		t.Fatalf("expected id-less node scored 12 as unknown, got %+v", last)
	}
	for _, c := range out.Candidates {
		if c.Channel != domain.ChannelLexical {
			t.Fatalf("expected lexical channel, got %s", c.Channel)
		}
	}
}

func TestSearchLexicalSkipsShortText(t *testing.T) {
	out := SearchLexical(context.Background(), lexicalFixture(), []string{"apu"})
	for _, c := range out.Candidates {
		if c.ID == "1.2" {
			t.Fatalf("node with text of 10 runes or fewer must not be returned")
		}
	}
}

func TestSearchLexicalNoKeywords(t *testing.T) {
	out := SearchLexical(context.Background(), lexicalFixture(), nil)
	if len(out.Candidates) != 0 || out.Status != "no keywords" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestSearchLexicalNilIndex(t *testing.T) {
	out := SearchLexical(context.Background(), nil, []string{"engine"})
	if len(out.Candidates) != 0 || out.Status == "" {
		t.Fatalf("expected empty result with status, got %+v", out)
	}
}

func TestSearchLexicalCapsResults(t *testing.T) {
	roots := make([]*domain.DocumentNode, 0, 30)
	for i := 0; i < 30; i++ {
		roots = append(roots, node(fmt.Sprintf("n%d", i), "T", "hydraulic pump maintenance step"))
	}
	out := SearchLexical(context.Background(), domain.NewPageIndex(withPaths(roots...)), []string{"hydraulic"})
	if len(out.Candidates) != 20 {
		t.Fatalf("expected 20 candidates, got %d", len(out.Candidates))
	}
	if out.Candidates[0].ID != "n0" || out.Candidates[19].ID != "n19" {
		t.Fatalf("expected traversal order to be kept for ties")
	}
}

func TestSearchLexicalCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := SearchLexical(ctx, lexicalFixture(), []string{"engine"})
	if !out.Cancelled || len(out.Candidates) != 0 {
		t.Fatalf("expected cancelled empty outcome, got %+v", out)
	}
}
