package pageindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
)

const structureFixture = `{
  "doc_name": "manual.pdf",
  "structure": [
    {
      "title": "Chapter 1",
      "node_id": "0001",
      "text": "Engine start procedure",
      "summary": "How to start",
      "nodes": [
        {"title": "1.1 Checks", "node_id": 2, "text": "Preflight checks"},
        {"title": "No id", "text": "orphan text"},
        "not an object",
        {"title": 42, "node_id": "0003", "text": ["bad"], "nodes": "bad"}
      ]
    }
  ]
}`

func TestParseStructureObject(t *testing.T) {
	idx, err := Parse([]byte(structureFixture))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if idx.Len() != 3 {
		t.Fatalf("expected 3 registered nodes, got %d", idx.Len())
	}

	child, ok := idx.Node("2")
	if !ok {
		t.Fatalf("expected numeric node_id to be registered as string")
	}
	if child.PathString() != "Chapter 1 > 1.1 Checks" {
		t.Fatalf("unexpected path %q", child.PathString())
	}

	malformed, ok := idx.Node("0003")
	if !ok || malformed.Title != "" || malformed.Text != "" || len(malformed.Children) != 0 {
		t.Fatalf("expected malformed fields to default, got %+v", malformed)
	}

	root := idx.Roots[0]
	if len(root.Children) != 3 {
		t.Fatalf("expected non-object child to be skipped, got %d children", len(root.Children))
	}
	if root.Children[1].ID != "" || root.Children[1].Text != "orphan text" {
		t.Fatalf("expected id-less node to stay in the tree")
	}
}

func TestParseBareArrayWithBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`[{"title":"A","node_id":"a","text":"x"}]`)...)
	idx, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, ok := idx.Node("a"); !ok {
		t.Fatalf("expected node a")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, body := range []string{"not json", `"string root"`} {
		_, err := Parse([]byte(body))
		if !errors.Is(err, domain.ErrIndexUnavailable) {
			t.Fatalf("expected index unavailable for %q, got %v", body, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected index unavailable, got %v", err)
	}
}

type countingLoader struct {
	inner *Loader
	calls int
}

func (c *countingLoader) Load(ctx context.Context, path string) (*domain.PageIndex, error) {
	c.calls++
	return c.inner.Load(ctx, path)
}

func TestCachingLoaderReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	if err := os.WriteFile(path, []byte(`[{"title":"A","node_id":"a"}]`), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	inner := &countingLoader{inner: NewLoader()}
	loader := NewCachingLoader(inner, 2)
	ctx := context.Background()

	first, err := loader.Load(ctx, path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	second, _ := loader.Load(ctx, path)
	if first != second || inner.calls != 1 {
		t.Fatalf("expected cached index, calls=%d", inner.calls)
	}

	if err := os.WriteFile(path, []byte(`[{"title":"A","node_id":"a"},{"title":"B","node_id":"b"}]`), 0o600); err != nil {
		t.Fatalf("rewrite fixture: %v", err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	third, err := loader.Load(ctx, path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if third.Len() != 2 || inner.calls != 2 {
		t.Fatalf("expected reload after change, len=%d calls=%d", third.Len(), inner.calls)
	}
}
