// Package callgraph builds a best-effort method call graph from method
// bodies.
//
// Targets are resolved syntactically: a qualified call a.b() targets "a.b"
// using the receiver text as written, an unqualified call (or one on `this`)
// targets the enclosing class. Receivers are never resolved to their
// declared types, and methods sharing a simple name across classes are not
// told apart beyond that rule.
package callgraph

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"

	"github.com/dejo1307/javalens/internal/javaast"
)

// Resolution describes how call targets are identified.
const Resolution = "syntactic"

// Edge is a directed caller -> callee link between method identifiers.
type Edge struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
}

// Builder accumulates a call graph across compilation units until Reset.
//
// The graph is simple: a call repeated in the same caller yields one edge.
// Call counts are not kept. Recursive calls are kept as self edges.
type Builder struct {
	g       *multi.DirectedGraph
	ids     map[string]int64
	names   []string
	edges   []Edge
	methods map[string]bool
}

// New creates an empty Builder.
func New() *Builder {
	b := &Builder{}
	b.Reset()
	return b
}

// Reset clears every accumulated edge and identifier.
func (b *Builder) Reset() {
	b.g = multi.NewDirectedGraph()
	b.ids = make(map[string]int64)
	b.names = nil
	b.edges = nil
	b.methods = make(map[string]bool)
}

// Resolution reports the resolution capability of the identifiers this
// builder produces.
func (b *Builder) Resolution() string { return Resolution }

// BuildSource parses src and adds its calls.
func (b *Builder) BuildSource(src string) error {
	unit, err := javaast.ParseString(src)
	if err != nil {
		return err
	}
	defer unit.Close()
	b.Build(unit)
	return nil
}

// Build adds the calls made in every method body of unit. Calls without a
// member name are skipped.
func (b *Builder) Build(unit *javaast.CompilationUnit) {
	decls, _ := unit.TypeDecls()
	for _, td := range decls {
		for _, m := range unit.MethodBodies(td) {
			if m.Constructor {
				continue
			}
			caller := td.Name + "." + m.Name
			b.methods[caller] = true
			if m.Body == nil {
				continue
			}
			for path, n := range javaast.Walk(m.Body, javaast.KindMethodInvocation) {
				// Calls inside a local class belong to that class's methods.
				// Anonymous class bodies stay with the enclosing method.
				if path.EnclosingType() != nil {
					continue
				}
				inv, ok := unit.Invocation(n)
				if !ok {
					continue
				}
				callee := td.Name + "." + inv.Name
				if inv.Qualifier != nil {
					callee = *inv.Qualifier + "." + inv.Name
				}
				b.addEdge(caller, callee)
			}
		}
	}
}

func (b *Builder) id(name string) int64 {
	if id, ok := b.ids[name]; ok {
		return id
	}
	id := int64(len(b.names))
	b.ids[name] = id
	b.names = append(b.names, name)
	b.g.AddNode(multi.Node(id))
	return id
}

func (b *Builder) addEdge(caller, callee string) {
	b.methods[callee] = true
	from, to := b.id(caller), b.id(callee)
	if b.g.Lines(from, to).Len() > 0 {
		return
	}
	b.g.SetLine(b.g.NewLine(multi.Node(from), multi.Node(to)))
	b.edges = append(b.edges, Edge{Caller: caller, Callee: callee})
}

// Methods returns every discovered method identifier, callers and callees
// alike, sorted.
func (b *Builder) Methods() []string {
	out := make([]string, 0, len(b.methods))
	for m := range b.methods {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Edges returns the edges in discovery order.
func (b *Builder) Edges() []Edge {
	return append([]Edge(nil), b.edges...)
}

// Callees returns the methods called by id, sorted.
func (b *Builder) Callees(id string) []string {
	from, ok := b.ids[id]
	if !ok {
		return nil
	}
	return b.collect(b.g.From(from))
}

// Callers returns the methods calling id, sorted.
func (b *Builder) Callers(id string) []string {
	to, ok := b.ids[id]
	if !ok {
		return nil
	}
	return b.collect(b.g.To(to))
}

func (b *Builder) collect(nodes graph.Nodes) []string {
	var out []string
	for nodes.Next() {
		out = append(out, b.names[nodes.Node().ID()])
	}
	sort.Strings(out)
	return out
}
