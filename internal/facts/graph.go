package facts

import (
	"sort"
	"strconv"
	"strings"
)

// Graph is an adjacency index over fact relations, rebuilt from the store
// after each snapshot. Relation targets that have no fact of their own (an
// external supertype, an unresolved callee) still appear as nodes.
type Graph struct {
	forward map[string][]Edge
	reverse map[string][]Edge
	facts   []Fact
	first   map[string]int // fact name -> index of its first fact
}

// Edge is one adjacency entry. In the reverse index Target holds the source.
type Edge struct {
	RelKind string
	Target  string
}

// TraversalNode is a node reached during traversal.
type TraversalNode struct {
	Name  string `json:"name"`
	Kind  string `json:"kind,omitempty"`
	File  string `json:"file,omitempty"`
	Line  int    `json:"line,omitempty"`
	Depth int    `json:"depth"`
}

// TraversalEdge is an edge followed during traversal.
type TraversalEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// TraversalStats summarizes a traversal.
type TraversalStats struct {
	NodesVisited    int  `json:"nodes_visited"`
	EdgesTraversed  int  `json:"edges_traversed"`
	MaxDepthReached int  `json:"max_depth_reached"`
	Truncated       bool `json:"truncated"`
}

// TraversalResult is the output of Traverse.
type TraversalResult struct {
	Nodes []TraversalNode `json:"nodes"`
	Edges []TraversalEdge `json:"edges"`
	Stats TraversalStats  `json:"stats"`
}

// PathResult is the output of FindPath.
type PathResult struct {
	From  string          `json:"from"`
	To    string          `json:"to"`
	Found bool            `json:"found"`
	Path  []TraversalNode `json:"path,omitempty"`
	Edges []TraversalEdge `json:"edges,omitempty"`
}

// ImpactResult groups the dependents of a fact by distance.
type ImpactResult struct {
	Target  string                  `json:"target"`
	ByDepth map[int][]TraversalNode `json:"by_depth"`
	Edges   []TraversalEdge         `json:"edges"`
	Summary string                  `json:"summary"`
	Stats   TraversalStats          `json:"stats"`
}

// NewGraph indexes the relations of ff in both directions.
func NewGraph(ff []Fact) *Graph {
	g := &Graph{
		forward: make(map[string][]Edge),
		reverse: make(map[string][]Edge),
		facts:   ff,
		first:   make(map[string]int, len(ff)),
	}
	for i, f := range ff {
		if _, ok := g.first[f.Name]; !ok && f.Name != "" {
			g.first[f.Name] = i
		}
	}
	for _, f := range ff {
		for _, r := range f.Relations {
			g.forward[f.Name] = append(g.forward[f.Name], Edge{RelKind: r.Kind, Target: r.Target})
			g.reverse[r.Target] = append(g.reverse[r.Target], Edge{RelKind: r.Kind, Target: f.Name})
		}
	}
	return g
}

// Nodes returns every node name, facts and bare relation targets alike,
// sorted.
func (g *Graph) Nodes() []string {
	seen := make(map[string]bool, len(g.first))
	for name := range g.first {
		seen[name] = true
	}
	for name := range g.reverse {
		seen[name] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NodeCount returns the number of distinct nodes.
func (g *Graph) NodeCount() int { return len(g.Nodes()) }

// EdgeCount returns the number of relations.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, es := range g.forward {
		n += len(es)
	}
	return n
}

// Traverse walks breadth-first from start. direction is "forward" or
// "reverse"; relKinds and nodeKinds restrict the relations followed and the
// nodes reported (nil means all). Nodes filtered out by kind are still walked
// through. maxDepth defaults to 5 (max 20), maxNodes to 100 (max 500).
func (g *Graph) Traverse(start, direction string, relKinds, nodeKinds []string, maxDepth, maxNodes int) TraversalResult {
	maxDepth = clamp(maxDepth, 5, 20)
	maxNodes = clamp(maxNodes, 100, 500)

	adj := g.forward
	reverse := direction == "reverse"
	if reverse {
		adj = g.reverse
	}
	rels := toSet(relKinds)
	kinds := toSet(nodeKinds)

	res := TraversalResult{Nodes: []TraversalNode{g.node(start, 0)}}
	visited := map[string]bool{start: true}
	type item struct {
		name  string
		depth int
	}
	queue := []item{{start, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, e := range adj[cur.name] {
			if _, ok := rels[e.RelKind]; rels != nil && !ok {
				continue
			}
			res.Stats.EdgesTraversed++
			if reverse {
				res.Edges = append(res.Edges, TraversalEdge{Source: e.Target, Target: cur.name, Kind: e.RelKind})
			} else {
				res.Edges = append(res.Edges, TraversalEdge{Source: cur.name, Target: e.Target, Kind: e.RelKind})
			}
			if visited[e.Target] {
				continue
			}
			visited[e.Target] = true

			depth := cur.depth + 1
			res.Stats.MaxDepthReached = max(res.Stats.MaxDepthReached, depth)
			n := g.node(e.Target, depth)
			if _, ok := kinds[n.Kind]; kinds != nil && !ok {
				queue = append(queue, item{e.Target, depth})
				continue
			}
			if len(res.Nodes) >= maxNodes {
				res.Stats.Truncated = true
				continue
			}
			res.Nodes = append(res.Nodes, n)
			queue = append(queue, item{e.Target, depth})
		}
	}
	res.Stats.NodesVisited = len(visited)
	return res
}

// FindPath returns a shortest forward path from one node to another.
// maxDepth defaults to 10 (max 20).
func (g *Graph) FindPath(from, to string, relKinds []string, maxDepth int) PathResult {
	maxDepth = clamp(maxDepth, 10, 20)
	res := PathResult{From: from, To: to}
	if from == to {
		res.Found = true
		res.Path = []TraversalNode{g.node(from, 0)}
		return res
	}

	rels := toSet(relKinds)
	parent := map[string]TraversalEdge{}
	visited := map[string]bool{from: true}
	frontier := []string{from}
	for depth := 0; depth < maxDepth && len(frontier) > 0 && !res.Found; depth++ {
		var next []string
		for _, name := range frontier {
			for _, e := range g.forward[name] {
				if _, ok := rels[e.RelKind]; rels != nil && !ok {
					continue
				}
				if visited[e.Target] {
					continue
				}
				visited[e.Target] = true
				parent[e.Target] = TraversalEdge{Source: name, Target: e.Target, Kind: e.RelKind}
				if e.Target == to {
					res.Found = true
					break
				}
				next = append(next, e.Target)
			}
			if res.Found {
				break
			}
		}
		frontier = next
	}
	if !res.Found {
		return res
	}

	for cur := to; cur != from; cur = parent[cur].Source {
		res.Edges = append(res.Edges, parent[cur])
	}
	for i, j := 0, len(res.Edges)-1; i < j; i, j = i+1, j-1 {
		res.Edges[i], res.Edges[j] = res.Edges[j], res.Edges[i]
	}
	res.Path = append(res.Path, g.node(from, 0))
	for i, e := range res.Edges {
		res.Path = append(res.Path, g.node(e.Target, i+1))
	}
	return res
}

// Impact collects everything that transitively points at target, bucketed
// by distance. maxDepth defaults to 3 (max 10).
func (g *Graph) Impact(target string, maxDepth, maxNodes int) ImpactResult {
	rev := g.Traverse(target, "reverse", nil, nil, clamp(maxDepth, 3, 10), maxNodes)
	res := ImpactResult{
		Target:  target,
		ByDepth: make(map[int][]TraversalNode),
		Edges:   rev.Edges,
		Stats:   rev.Stats,
	}
	for _, n := range rev.Nodes {
		if n.Depth > 0 {
			res.ByDepth[n.Depth] = append(res.ByDepth[n.Depth], n)
		}
	}
	res.Summary = impactSummary(res.ByDepth)
	return res
}

func (g *Graph) node(name string, depth int) TraversalNode {
	n := TraversalNode{Name: name, Depth: depth}
	if i, ok := g.first[name]; ok {
		n.Kind = g.facts[i].Kind
		n.File = g.facts[i].File
		n.Line = g.facts[i].Line
	}
	return n
}

func impactSummary(byDepth map[int][]TraversalNode) string {
	if len(byDepth) == 0 {
		return "No dependents found."
	}
	depths := make([]int, 0, len(byDepth))
	total := 0
	for d, nodes := range byDepth {
		depths = append(depths, d)
		total += len(nodes)
	}
	sort.Ints(depths)

	parts := make([]string, 0, len(depths))
	for _, d := range depths {
		counts := map[string]int{}
		for _, n := range byDepth[d] {
			kind := n.Kind
			if kind == "" {
				kind = "external"
			}
			counts[kind]++
		}
		kinds := make([]string, 0, len(counts))
		for k := range counts {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		var items []string
		for _, k := range kinds {
			items = append(items, strconv.Itoa(counts[k])+" "+k)
		}
		parts = append(parts, "depth "+strconv.Itoa(d)+": "+strings.Join(items, ", "))
	}
	return strconv.Itoa(total) + " dependents (" + strings.Join(parts, "; ") + ")"
}

func clamp(v, def, hi int) int {
	if v <= 0 {
		return def
	}
	return min(v, hi)
}
