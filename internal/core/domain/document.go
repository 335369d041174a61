package domain

import "strings"

const pathSeparator = " > "

// DocumentNode is one section of the hierarchical structure index.
type DocumentNode struct {
	ID       string          `json:"node_id"`
	Title    string          `json:"title"`
	Text     string          `json:"text"`
	Summary  string          `json:"summary,omitempty"`
	Path     []string        `json:"path"`
	Children []*DocumentNode `json:"nodes,omitempty"`
}

func (n *DocumentNode) PathString() string {
	return strings.Join(n.Path, pathSeparator)
}

// PageIndex is the loaded structure index: the tree plus an id lookup table.
// It is never mutated after construction and is safe for concurrent reads.
type PageIndex struct {
	Roots []*DocumentNode

	byID  map[string]*DocumentNode
	order []string
}

// NewPageIndex registers every node carrying an id. Later duplicates of an id
// replace earlier ones, matching a plain map assignment during traversal.
func NewPageIndex(roots []*DocumentNode) *PageIndex {
	idx := &PageIndex{
		Roots: roots,
		byID:  make(map[string]*DocumentNode),
	}
	var visit func(n *DocumentNode)
	visit = func(n *DocumentNode) {
		if n == nil {
			return
		}
		if n.ID != "" {
			if _, seen := idx.byID[n.ID]; !seen {
				idx.order = append(idx.order, n.ID)
			}
			idx.byID[n.ID] = n
		}
		for _, child := range n.Children {
			visit(child)
		}
	}
	for _, root := range roots {
		visit(root)
	}
	return idx
}

func (p *PageIndex) Node(id string) (*DocumentNode, bool) {
	if p == nil {
		return nil, false
	}
	n, ok := p.byID[id]
	return n, ok
}

func (p *PageIndex) Len() int {
	if p == nil {
		return 0
	}
	return len(p.byID)
}

// IDs returns registered node ids in traversal order.
func (p *PageIndex) IDs() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}
