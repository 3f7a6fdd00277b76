package cycles

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/dejo1307/javalens/internal/facts"
)

// CycleExplainer detects cyclic dependencies between packages and between
// classes using Tarjan's SCC algorithm.
type CycleExplainer struct{}

// New creates a new CycleExplainer.
func New() *CycleExplainer {
	return &CycleExplainer{}
}

func (e *CycleExplainer) Name() string {
	return "cycles"
}

var classRels = map[string]bool{
	facts.RelExtends:    true,
	facts.RelImplements: true,
	facts.RelAssociates: true,
	facts.RelComposes:   true,
}

// Explain builds the package import graph and the class relationship graph
// and reports every strongly connected component with more than one node.
func (e *CycleExplainer) Explain(ctx context.Context, store *facts.Store) ([]facts.Insight, error) {
	var insights []facts.Insight
	for _, scc := range stronglyConnected(buildPackageGraph(store)) {
		insights = append(insights, cycleInsight("packages", "package", scc, []string{
			"Introduce an interface to break the cycle",
			"Extract shared types to a separate package",
			"Consider merging tightly coupled packages",
		}))
	}
	if err := ctx.Err(); err != nil {
		return insights, err
	}
	for _, scc := range stronglyConnected(buildClassGraph(store)) {
		insights = append(insights, cycleInsight("classes", "class", scc, []string{
			"Depend on an interface instead of the concrete class",
			"Move the shared state into a third class",
		}))
	}
	return insights, nil
}

func cycleInsight(plural, singular string, scc []string, actions []string) facts.Insight {
	cyclePath := strings.Join(scc, " -> ") + " -> " + scc[0]
	evidence := make([]facts.Evidence, 0, len(scc))
	for _, name := range scc {
		evidence = append(evidence, facts.Evidence{
			Fact:   name,
			Detail: fmt.Sprintf("%s %q is part of the cycle", singular, name),
		})
	}
	return facts.Insight{
		Title:       fmt.Sprintf("Cyclic dependency detected (%d %s)", len(scc), plural),
		Description: fmt.Sprintf("The following %s form a dependency cycle: %s. This makes them impossible to change or test in isolation.", plural, cyclePath),
		Confidence:  1.0,
		Evidence:    evidence,
		Actions:     actions,
	}
}

// buildPackageGraph maps every package to the known packages it imports.
func buildPackageGraph(store *facts.Store) map[string][]string {
	graph := make(map[string][]string)
	known := make(map[string]bool)
	for _, p := range store.Packages() {
		known[p.Name] = true
		graph[p.Name] = nil
	}
	for _, p := range store.Packages() {
		for _, rel := range p.Relations {
			if rel.Kind != facts.RelImports {
				continue
			}
			if target := importedPackage(rel.Target, known); target != "" && target != p.Name {
				graph[p.Name] = append(graph[p.Name], target)
			}
		}
	}
	return graph
}

// importedPackage returns the analysed package an import refers to, or "".
// Nested and static member imports are resolved by dropping trailing
// segments until a known package remains.
func importedPackage(imp string, known map[string]bool) string {
	name := strings.TrimSuffix(imp, ".*")
	if name != imp && known[name] {
		return name
	}
	for {
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			return ""
		}
		name = name[:i]
		if known[name] {
			return name
		}
	}
}

// buildClassGraph maps every class to the analysed classes it relates to.
func buildClassGraph(store *facts.Store) map[string][]string {
	graph := make(map[string][]string)
	classes := store.Classes()
	known := make(map[string]bool, len(classes))
	for _, c := range classes {
		known[c.Name] = true
		graph[c.Name] = nil
	}
	for _, c := range classes {
		for _, rel := range c.Relations {
			if classRels[rel.Kind] && known[rel.Target] && rel.Target != c.Name {
				graph[c.Name] = append(graph[c.Name], rel.Target)
			}
		}
	}
	return graph
}

// stronglyConnected returns the components of graph with more than one
// node. Each component starts at its smallest name and follows graph order
// where possible; components are sorted by their first name.
func stronglyConnected(adj map[string][]string) [][]string {
	names := make([]string, 0, len(adj))
	for n := range adj {
		names = append(names, n)
	}
	sort.Strings(names)
	ids := make(map[string]int64, len(names))
	g := simple.NewDirectedGraph()
	for i, n := range names {
		ids[n] = int64(i)
		g.AddNode(simple.Node(i))
	}
	for from, targets := range adj {
		for _, to := range targets {
			f, t := ids[from], ids[to]
			if f != t && !g.HasEdgeFromTo(f, t) {
				g.SetEdge(simple.Edge{F: simple.Node(f), T: simple.Node(t)})
			}
		}
	}

	var out [][]string
	for _, component := range topo.TarjanSCC(g) {
		if len(component) <= 1 {
			continue
		}
		members := make(map[int64]bool, len(component))
		for _, n := range component {
			members[n.ID()] = true
		}
		out = append(out, walkCycle(g, names, members))
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// walkCycle orders the members of a component by a depth-first walk from
// the smallest member, visiting successors in name order.
func walkCycle(g *simple.DirectedGraph, names []string, members map[int64]bool) []string {
	var start int64 = -1
	for id := range members {
		if start < 0 || id < start {
			start = id
		}
	}
	var order []string
	seen := make(map[int64]bool, len(members))
	var visit func(id int64)
	visit = func(id int64) {
		seen[id] = true
		order = append(order, names[id])
		var next []int64
		to := g.From(id)
		for to.Next() {
			if n := to.Node().ID(); members[n] && !seen[n] {
				next = append(next, n)
			}
		}
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		for _, n := range next {
			if !seen[n] {
				visit(n)
			}
		}
	}
	visit(start)
	return order
}
