package ui

import (
	"fmt"
	"strings"

	"github.com/papapumpkin/semverx/internal/depgraph"
)

// TreeRenderer draws the dependency tree below one package with
// box-drawing connectors:
//
//	app 1.stable.0.stable.0.stable
//	├── log 1.stable.0.stable.0.stable
//	│   └── core 1.stable.0.stable.0.stable
//	└── net (unpublished)
//
// A package reached a second time is printed with a marker and not
// expanded again, which also cuts cycles.
type TreeRenderer struct {
	// Label renders a node; nil prints the ID and its version if known.
	Label func(id string) string
	// MaxDepth stops expansion below this depth; zero means unlimited.
	MaxDepth int
}

// Render returns the tree rooted at root. An unknown root wraps
// depgraph.ErrNodeNotFound.
func (t TreeRenderer) Render(g *depgraph.Snapshot, root string) (string, error) {
	if !g.Has(root) {
		return "", fmt.Errorf("ui: tree: %w: %s", depgraph.ErrNodeNotFound, root)
	}
	label := t.Label
	if label == nil {
		label = func(id string) string { return versionLabel(g, id) }
	}

	var sb strings.Builder
	sb.WriteString(label(root))
	sb.WriteByte('\n')
	seen := map[string]bool{root: true}
	t.walk(&sb, g, root, "", 1, seen, label)
	return sb.String(), nil
}

func (t TreeRenderer) walk(sb *strings.Builder, g *depgraph.Snapshot, id, prefix string, depth int, seen map[string]bool, label func(string) string) {
	children, _ := g.Neighbors(id)
	for i, c := range children {
		last := i == len(children)-1
		branch, indent := "├── ", "│   "
		if last {
			branch, indent = "└── ", "    "
		}
		sb.WriteString(prefix + branch + label(c))

		switch {
		case seen[c]:
			sb.WriteString(" (*)\n")
		case t.MaxDepth > 0 && depth >= t.MaxDepth:
			if n, _ := g.OutDegree(c); n > 0 {
				sb.WriteString(" …")
			}
			sb.WriteByte('\n')
		default:
			sb.WriteByte('\n')
			seen[c] = true
			t.walk(sb, g, c, prefix+indent, depth+1, seen, label)
		}
	}
}

func versionLabel(g *depgraph.Snapshot, id string) string {
	if v, ok := g.Version(id); ok {
		return id + " " + v.String()
	}
	return id + " (unpublished)"
}

// Tree prints the dependency tree of root.
func (p *Printer) Tree(g *depgraph.Snapshot, root string) error {
	out, err := TreeRenderer{
		Label: func(id string) string {
			if v, ok := g.Version(id); ok {
				return p.s.heading.Render(id) + " " + v.String()
			}
			return id + " " + p.s.muted.Render("(unpublished)")
		},
	}.Render(g, root)
	if err != nil {
		return err
	}
	fmt.Fprint(p.w, out)
	return nil
}
