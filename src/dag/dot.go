package dag

import (
	"io"
	"sort"

	"github.com/emicklei/dot"
)

// WriteDOT writes the graph in Graphviz DOT format, with an edge from every
// parent to each of its children.
func (g *Graph) WriteDOT(w io.Writer) error {
	return g.Snapshot().WriteDOT(w)
}

// WriteDOT writes the snapshot in Graphviz DOT format. Transactions are laid
// out layer by layer, and revoked transactions are drawn dashed. Parents that
// are not part of the snapshot are skipped.
func (s *Snapshot) WriteDOT(w io.Writer) error {
	_, err := io.WriteString(w, s.dotGraph().String())
	return err
}

func (s *Snapshot) dotGraph() *dot.Graph {
	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "LR")

	ordered := make([]string, 0, len(s.Transactions))
	for _, layer := range s.Layers {
		ids := append([]string(nil), layer...)
		sort.Strings(ids)
		ordered = append(ordered, ids...)
	}

	nodes := make(map[string]dot.Node, len(ordered))
	for _, id := range ordered {
		tx, ok := s.Transactions[id]
		if !ok {
			continue
		}
		n := g.Node(id)
		if tx.Status == StatusRevoked {
			n.Attr("style", "dashed")
			n.Attr("color", "gray")
		}
		nodes[id] = n
	}

	for _, id := range ordered {
		child, ok := nodes[id]
		if !ok {
			continue
		}
		for _, p := range s.Transactions[id].Parents {
			if parent, ok := nodes[p]; ok {
				g.Edge(parent, child)
			}
		}
	}

	return g
}
