package pageindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Loader reads structure files produced by the PDF-to-tree extractor.
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

func (l *Loader) Load(ctx context.Context, path string) (*domain.PageIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "load page index", fmt.Errorf("empty path"))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "load page index", err)
	}
	return Parse(data)
}

// Parse accepts {"structure": [...]} or a bare node array. Malformed nodes
// and fields are skipped or defaulted; only an unreadable root fails.
func Parse(data []byte) (*domain.PageIndex, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "parse page index", err)
	}

	var items []any
	switch v := root.(type) {
	case map[string]any:
		items, _ = v["structure"].([]any)
	case []any:
		items = v
	default:
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "parse page index", fmt.Errorf("unexpected root %T", root))
	}

	roots := make([]*domain.DocumentNode, 0, len(items))
	for _, item := range items {
		if n := parseNode(item, nil); n != nil {
			roots = append(roots, n)
		}
	}
	return domain.NewPageIndex(roots), nil
}

func parseNode(raw any, parentPath []string) *domain.DocumentNode {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	title := stringField(obj, "title")
	path := make([]string, len(parentPath), len(parentPath)+1)
	copy(path, parentPath)
	path = append(path, title)

	n := &domain.DocumentNode{
		ID:      idField(obj["node_id"]),
		Title:   title,
		Text:    stringField(obj, "text"),
		Summary: stringField(obj, "summary"),
		Path:    path,
	}
	if children, ok := obj["nodes"].([]any); ok {
		for _, child := range children {
			if c := parseNode(child, path); c != nil {
				n.Children = append(n.Children, c)
			}
		}
	}
	return n
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func idField(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
