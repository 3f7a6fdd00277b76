// Package structure emits the package, class and method facts of a project
// together with their relationship and call edges.
package structure

import (
	"context"
	"sort"

	"github.com/dejo1307/javalens/internal/callgraph"
	"github.com/dejo1307/javalens/internal/facts"
	"github.com/dejo1307/javalens/internal/project"
	"github.com/dejo1307/javalens/internal/relations"
)

var relKinds = map[relations.Kind]string{
	relations.Inheritance:    facts.RelExtends,
	relations.Implementation: facts.RelImplements,
	relations.Association:    facts.RelAssociates,
	relations.Composition:    facts.RelComposes,
}

// Analyzer derives structural facts from the declarations of a project.
type Analyzer struct {
	relations *relations.Builder
	calls     *callgraph.Builder
}

// New creates a structure Analyzer.
func New() *Analyzer {
	return &Analyzer{relations: relations.NewBuilder(), calls: callgraph.New()}
}

func (a *Analyzer) Name() string {
	return "structure"
}

// Relations returns the relationship graph of the last run.
func (a *Analyzer) Relations() *relations.Graph {
	return a.relations.Graph()
}

// Calls returns the call graph of the last run.
func (a *Analyzer) Calls() *callgraph.Builder {
	return a.calls
}

// Analyze emits one fact per package, class and distinct Class.method.
func (a *Analyzer) Analyze(ctx context.Context, p *project.Project) ([]facts.Fact, error) {
	var result []facts.Fact

	structure := p.Structure()
	for _, pkg := range p.Packages() {
		result = append(result, packageFact(pkg, structure[pkg]))
	}

	rg := a.relations.Build(p.Classes())
	outgoing := make(map[string][]relations.Edge)
	for _, e := range rg.Edges() {
		outgoing[e.Source] = append(outgoing[e.Source], e)
	}

	a.calls.Reset()
	var methods []facts.Fact
	seen := make(map[string]int)
	for _, f := range p.Files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		for _, c := range f.Classes {
			result = append(result, classFact(f, c.Name, c.Kind, c.Line, outgoing[c.Name], rg.FanOut(c.Name), map[string]any{
				"methods":     c.Methods,
				"fields":      c.Fields,
				"annotations": c.Annotations,
			}))
			for _, m := range c.MethodDecls {
				name := c.Name + "." + m.Name
				if i, dup := seen[name]; dup {
					methods[i].Props["overloads"] = methods[i].Props["overloads"].(int) + 1
					continue
				}
				seen[name] = len(methods)
				methods = append(methods, facts.Fact{
					Kind: facts.KindMethod,
					Name: name,
					File: f.Path,
					Line: m.Line,
					Props: map[string]any{
						"class":       c.Name,
						"return_type": m.ReturnType.Name,
						"params":      len(m.ParamTypes),
						"overloads":   1,
					},
					Relations: []facts.Relation{{Kind: facts.RelDeclares, Target: c.Name}},
				})
			}
		}
		if f.Unit != nil {
			a.calls.Build(f.Unit)
		}
	}

	for i := range methods {
		for _, callee := range a.calls.Callees(methods[i].Name) {
			methods[i].Relations = append(methods[i].Relations, facts.Relation{Kind: facts.RelCalls, Target: callee})
		}
	}
	return append(result, methods...), nil
}

func packageFact(pkg string, files []*project.File) facts.Fact {
	classes := 0
	imports := make(map[string]bool)
	for _, f := range files {
		classes += len(f.Classes)
		for _, imp := range f.Imports {
			imports[imp] = true
		}
	}
	targets := make([]string, 0, len(imports))
	for imp := range imports {
		targets = append(targets, imp)
	}
	sort.Strings(targets)

	fact := facts.Fact{
		Kind:  facts.KindPackage,
		Name:  pkg,
		Props: map[string]any{"files": len(files), "classes": classes},
	}
	for _, t := range targets {
		fact.Relations = append(fact.Relations, facts.Relation{Kind: facts.RelImports, Target: t})
	}
	return fact
}

func classFact(f *project.File, name, kind string, line int, edges []relations.Edge, fanOut int, props map[string]any) facts.Fact {
	props["class_kind"] = kind
	props["package"] = f.Package
	props["fan_out"] = fanOut
	fact := facts.Fact{
		Kind:      facts.KindClass,
		Name:      name,
		File:      f.Path,
		Line:      line,
		Props:     props,
		Relations: []facts.Relation{{Kind: facts.RelDeclares, Target: f.Package}},
	}
	type key struct{ kind, target string }
	seen := make(map[key]bool)
	for _, e := range edges {
		k := key{relKinds[e.Kind], e.Target}
		if seen[k] {
			continue
		}
		seen[k] = true
		fact.Relations = append(fact.Relations, facts.Relation{Kind: k.kind, Target: k.target})
	}
	return fact
}
