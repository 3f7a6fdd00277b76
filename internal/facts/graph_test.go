package facts

import (
	"strings"
	"testing"
)

// buildHierarchy creates:
//
//	Dog --extends--> Animal --implements--> Living
//	Dog --associates--> Bone
//	Kennel --composes--> Dog
//	Cat (disconnected)
func buildHierarchy() *Graph {
	s := NewStore()
	s.Add(
		Fact{Kind: KindClass, Name: "Dog", File: "Dog.java", Line: 3, Relations: []Relation{
			{Kind: RelExtends, Target: "Animal"},
			{Kind: RelAssociates, Target: "Bone"},
		}},
		Fact{Kind: KindClass, Name: "Animal", File: "Animal.java", Line: 1, Relations: []Relation{
			{Kind: RelImplements, Target: "Living"},
		}},
		Fact{Kind: KindClass, Name: "Kennel", File: "Kennel.java", Relations: []Relation{
			{Kind: RelComposes, Target: "Dog"},
		}},
		Fact{Kind: KindClass, Name: "Cat", File: "Cat.java"},
	)
	s.BuildGraph()
	return s.Graph()
}

func TestNewGraph_IncludesBareTargets(t *testing.T) {
	g := buildHierarchy()

	want := []string{"Animal", "Bone", "Cat", "Dog", "Kennel", "Living"}
	if got := g.Nodes(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Nodes = %v, want %v", got, want)
	}
	if g.EdgeCount() != 4 {
		t.Errorf("EdgeCount = %d, want 4", g.EdgeCount())
	}
	if g.NodeCount() != 6 {
		t.Errorf("NodeCount = %d, want 6", g.NodeCount())
	}
}

func TestTraverse_Forward(t *testing.T) {
	g := buildHierarchy()
	res := g.Traverse("Dog", "forward", nil, nil, 0, 0)

	if len(res.Nodes) != 4 {
		t.Fatalf("nodes = %v, want Dog, Animal, Bone, Living", res.Nodes)
	}
	if res.Nodes[0].Name != "Dog" || res.Nodes[0].Line != 3 {
		t.Errorf("start node = %+v", res.Nodes[0])
	}
	if res.Stats.MaxDepthReached != 2 {
		t.Errorf("MaxDepthReached = %d, want 2", res.Stats.MaxDepthReached)
	}
	for _, n := range res.Nodes {
		if n.Name == "Bone" && n.Kind != "" {
			t.Errorf("bare target Bone has kind %q", n.Kind)
		}
	}
}

func TestTraverse_RelationFilter(t *testing.T) {
	g := buildHierarchy()
	res := g.Traverse("Dog", "forward", []string{RelExtends, RelImplements}, nil, 0, 0)

	var names []string
	for _, n := range res.Nodes {
		names = append(names, n.Name)
	}
	if strings.Join(names, ",") != "Dog,Animal,Living" {
		t.Errorf("names = %v", names)
	}
}

func TestTraverse_ReverseAndDepthLimit(t *testing.T) {
	g := buildHierarchy()
	res := g.Traverse("Living", "reverse", nil, nil, 1, 0)

	if len(res.Nodes) != 2 || res.Nodes[1].Name != "Animal" {
		t.Errorf("nodes = %v, want Living, Animal", res.Nodes)
	}
	if len(res.Edges) != 1 || res.Edges[0].Source != "Animal" || res.Edges[0].Target != "Living" {
		t.Errorf("edges = %v", res.Edges)
	}
}

func TestTraverse_MaxNodesTruncates(t *testing.T) {
	g := buildHierarchy()
	res := g.Traverse("Dog", "forward", nil, nil, 0, 2)
	if len(res.Nodes) != 2 || !res.Stats.Truncated {
		t.Errorf("nodes=%d truncated=%v", len(res.Nodes), res.Stats.Truncated)
	}
}

func TestFindPath(t *testing.T) {
	g := buildHierarchy()

	res := g.FindPath("Kennel", "Living", nil, 0)
	if !res.Found {
		t.Fatal("expected path Kennel -> Living")
	}
	var names []string
	for _, n := range res.Path {
		names = append(names, n.Name)
	}
	if strings.Join(names, ",") != "Kennel,Dog,Animal,Living" {
		t.Errorf("path = %v", names)
	}
	if len(res.Edges) != 3 || res.Edges[0].Kind != RelComposes {
		t.Errorf("edges = %v", res.Edges)
	}

	if g.FindPath("Living", "Dog", nil, 0).Found {
		t.Error("paths are directed")
	}
	if !g.FindPath("Cat", "Cat", nil, 0).Found {
		t.Error("a node reaches itself")
	}
	if g.FindPath("Kennel", "Living", []string{RelExtends}, 0).Found {
		t.Error("relation filter should block the composes edge")
	}
}

func TestImpact(t *testing.T) {
	g := buildHierarchy()
	res := g.Impact("Animal", 0, 0)

	if len(res.ByDepth[1]) != 1 || res.ByDepth[1][0].Name != "Dog" {
		t.Errorf("depth 1 = %v", res.ByDepth[1])
	}
	if len(res.ByDepth[2]) != 1 || res.ByDepth[2][0].Name != "Kennel" {
		t.Errorf("depth 2 = %v", res.ByDepth[2])
	}
	if !strings.HasPrefix(res.Summary, "2 dependents") {
		t.Errorf("Summary = %q", res.Summary)
	}
	if got := g.Impact("Cat", 0, 0).Summary; got != "No dependents found." {
		t.Errorf("Summary = %q", got)
	}
}
