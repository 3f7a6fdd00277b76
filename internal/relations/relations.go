// Package relations builds the typed class relationship graph: inheritance,
// interface implementation, composition and association.
package relations

import (
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/dejo1307/javalens/internal/declarations"
)

// Kind is the type of a relationship edge.
type Kind string

const (
	Inheritance    Kind = "Inheritance"
	Implementation Kind = "Implementation"
	Association    Kind = "Association"
	Composition    Kind = "Composition"
)

// Edge is one relationship instance between two classes.
type Edge struct {
	Source  string `json:"source"`
	Target  string `json:"target"`
	Kind    Kind   `json:"kind"`
	Details string `json:"details"`
}

// Stats are the derived statistics of a relationship graph.
type Stats struct {
	TotalClasses        int     `json:"total_classes"`
	TotalDependencies   int     `json:"total_dependencies"`
	AvgDependencies     float64 `json:"avg_dependencies"`
	MaxInheritanceDepth int     `json:"max_inheritance_depth"`
}

// excluded types never produce field, parameter or return edges.
var excluded = map[string]bool{
	"int": true, "long": true, "float": true, "double": true,
	"boolean": true, "char": true, "byte": true, "short": true, "void": true,
	"Integer": true, "Long": true, "Float": true, "Double": true,
	"Boolean": true, "Character": true, "Byte": true, "Short": true, "Void": true,
	"String": true, "Object": true,
}

// IsExcluded reports whether a simple type name is a primitive or a common
// wrapper type that never forms a relationship.
func IsExcluded(typeName string) bool {
	return typeName == "" || excluded[typeName]
}

// Graph is a directed multigraph of class relationships. Every edge endpoint
// is a node, including types declared outside the analysed corpus.
type Graph struct {
	g       *multi.DirectedGraph
	ids     map[string]int64
	names   []string // node names in first-seen order, indexed by id
	edges   []Edge   // in build order
	lineOf  map[int64]int
	records map[string]declarations.ClassRecord
}

func newGraph() *Graph {
	return &Graph{
		g:       multi.NewDirectedGraph(),
		ids:     make(map[string]int64),
		lineOf:  make(map[int64]int),
		records: make(map[string]declarations.ClassRecord),
	}
}

func (gr *Graph) node(name string) graph.Node {
	if id, ok := gr.ids[name]; ok {
		return gr.g.Node(id)
	}
	id := int64(len(gr.names))
	gr.ids[name] = id
	gr.names = append(gr.names, name)
	n := multi.Node(id)
	gr.g.AddNode(n)
	return n
}

func (gr *Graph) add(e Edge) {
	l := gr.g.NewLine(gr.node(e.Source), gr.node(e.Target))
	gr.g.SetLine(l)
	gr.lineOf[l.ID()] = len(gr.edges)
	gr.edges = append(gr.edges, e)
}

// Nodes returns every class name in the graph in first-seen order.
func (gr *Graph) Nodes() []string {
	return append([]string(nil), gr.names...)
}

// HasNode reports whether name is a node of the graph.
func (gr *Graph) HasNode(name string) bool {
	_, ok := gr.ids[name]
	return ok
}

// Edges returns every edge in build order.
func (gr *Graph) Edges() []Edge {
	return append([]Edge(nil), gr.edges...)
}

// EdgesOfKind returns the edges of one kind in build order.
func (gr *Graph) EdgesOfKind(kind Kind) []Edge {
	var out []Edge
	for _, e := range gr.edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// HasEdge reports whether an edge of the given kind runs from source to
// target.
func (gr *Graph) HasEdge(source, target string, kind Kind) bool {
	from, ok1 := gr.ids[source]
	to, ok2 := gr.ids[target]
	if !ok1 || !ok2 {
		return false
	}
	lines := gr.g.Lines(from, to)
	for lines.Next() {
		if gr.edges[gr.lineOf[lines.Line().ID()]].Kind == kind {
			return true
		}
	}
	return false
}

// FanOut returns the number of outgoing edges of a class, counting each
// relationship instance.
func (gr *Graph) FanOut(name string) int {
	id, ok := gr.ids[name]
	if !ok {
		return 0
	}
	total := 0
	to := gr.g.From(id)
	for to.Next() {
		total += gr.g.Lines(id, to.Node().ID()).Len()
	}
	return total
}

// Related returns the superclass and implemented interfaces of a declared
// class, superclass first.
func (gr *Graph) Related(name string) []string {
	rec, ok := gr.records[name]
	if !ok {
		return nil
	}
	var out []string
	if rec.Extends != "" {
		out = append(out, rec.Extends)
	}
	return append(out, rec.Implements...)
}

// Stats computes the graph statistics. The average is 0 for an empty graph.
func (gr *Graph) Stats() Stats {
	s := Stats{
		TotalClasses:      len(gr.names),
		TotalDependencies: len(gr.edges),
	}
	if s.TotalClasses > 0 {
		s.AvgDependencies = float64(s.TotalDependencies) / float64(s.TotalClasses)
	}
	s.MaxInheritanceDepth = gr.maxInheritanceDepth()
	return s
}

// maxInheritanceDepth returns the number of edges on the longest chain of
// Inheritance edges. An acyclic hierarchy is solved with one longest-path
// pass over a topological order; a cyclic one falls back to a simple-path
// search from every node.
func (gr *Graph) maxInheritanceDepth() int {
	sub := simple.NewDirectedGraph()
	adj := make(map[int64][]int64)
	selfLoop := false
	for _, e := range gr.edges {
		if e.Kind != Inheritance {
			continue
		}
		from, to := gr.ids[e.Source], gr.ids[e.Target]
		if from == to {
			selfLoop = true
			continue
		}
		if !sub.HasEdgeFromTo(from, to) {
			sub.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
			adj[from] = append(adj[from], to)
		}
	}
	if sub.Nodes().Len() == 0 {
		if selfLoop {
			return 1
		}
		return 0
	}

	order, err := topo.Sort(sub)
	if err != nil || selfLoop {
		return longestSimplePath(adj)
	}

	// Walk the order backwards so every successor is settled first.
	depth := make(map[int64]int, len(order))
	best := 0
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i].ID()
		for _, next := range adj[id] {
			depth[id] = max(depth[id], depth[next]+1)
		}
		best = max(best, depth[id])
	}
	return best
}

func longestSimplePath(adj map[int64][]int64) int {
	best := 0
	onPath := make(map[int64]bool)
	var dfs func(id int64, length int)
	dfs = func(id int64, length int) {
		best = max(best, length)
		onPath[id] = true
		for _, next := range adj[id] {
			if !onPath[next] {
				dfs(next, length+1)
			}
		}
		onPath[id] = false
	}
	for id := range adj {
		dfs(id, 0)
	}
	return best
}

// Builder builds relationship graphs from class records.
type Builder struct {
	graph *Graph
}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{graph: newGraph()}
}

// Reset drops the last built graph.
func (b *Builder) Reset() {
	b.graph = newGraph()
}

// Graph returns the last built graph.
func (b *Builder) Graph() *Graph {
	return b.graph
}

// Build discards any previous state and builds a graph over records. Every
// declared class becomes a node even when it has no relationships. The
// supertypes of an interface are Inheritance edges; only classes, enums and
// records implement.
func (b *Builder) Build(records []declarations.ClassRecord) *Graph {
	b.Reset()
	gr := b.graph
	for _, rec := range records {
		gr.node(rec.Name)
		if _, dup := gr.records[rec.Name]; !dup {
			gr.records[rec.Name] = rec
		}

		if rec.Extends != "" {
			gr.add(Edge{Source: rec.Name, Target: rec.Extends, Kind: Inheritance, Details: "extends"})
		}
		// An interface extending another interface is inheritance.
		ifaceKind, ifaceDetails := Implementation, "implements"
		if rec.Kind == "interface" {
			ifaceKind, ifaceDetails = Inheritance, "extends"
		}
		for _, iface := range rec.Implements {
			gr.add(Edge{Source: rec.Name, Target: iface, Kind: ifaceKind, Details: ifaceDetails})
		}

		for _, f := range rec.FieldDecls {
			kind := Association
			if f.Final {
				kind = Composition
			}
			if !IsExcluded(f.Type.Name) {
				gr.add(Edge{Source: rec.Name, Target: f.Type.Name, Kind: kind, Details: "field " + f.Name})
			}
			for _, arg := range f.Type.Args {
				if !IsExcluded(arg) {
					gr.add(Edge{Source: rec.Name, Target: arg, Kind: Association, Details: fmt.Sprintf("field %s element", f.Name)})
				}
			}
		}

		for _, m := range rec.MethodDecls {
			for _, p := range m.ParamTypes {
				for _, name := range p.Names() {
					if !IsExcluded(name) {
						gr.add(Edge{Source: rec.Name, Target: name, Kind: Association, Details: "parameter of " + m.Name})
					}
				}
			}
			for _, name := range m.ReturnType.Names() {
				if !IsExcluded(name) {
					gr.add(Edge{Source: rec.Name, Target: name, Kind: Association, Details: "returned by " + m.Name})
				}
			}
		}
	}
	return gr
}
