// Package servicemap turns the Spring endpoints and cross-service links of a
// project into facts.
package servicemap

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/dejo1307/javalens/internal/facts"
	"github.com/dejo1307/javalens/internal/project"
	"github.com/dejo1307/javalens/internal/services"
)

const defaultService = "app"

// Analyzer emits endpoint and service facts.
type Analyzer struct {
	service  string
	services *services.Analyzer
}

// New creates an Analyzer. A non-empty service names every file's service;
// otherwise the name is derived from the file path.
func New(service string) *Analyzer {
	return &Analyzer{service: service, services: services.New()}
}

func (a *Analyzer) Name() string {
	return "services"
}

// Services returns the underlying analyzer holding the last run's results.
func (a *Analyzer) Services() *services.Analyzer {
	return a.services
}

func (a *Analyzer) Analyze(ctx context.Context, p *project.Project) ([]facts.Fact, error) {
	a.services.Reset()
	for _, f := range p.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.Unit != nil {
			a.services.AnalyzeUnit(f.Unit, a.serviceFor(p.Root, f.Path))
		}
	}

	var result []facts.Fact
	for _, e := range a.services.Endpoints() {
		result = append(result, facts.Fact{
			Kind: facts.KindEndpoint,
			Name: e.Method + " " + e.Path,
			File: fileOf(p, e.Class),
			Line: e.Line,
			Props: map[string]any{
				"method":  e.Method,
				"path":    e.Path,
				"service": e.Service,
				"class":   e.Class,
				"handler": e.Handler,
			},
			Relations: []facts.Relation{{Kind: facts.RelDeclares, Target: e.Class + "." + e.Handler}},
		})
	}

	g := a.services.ServiceGraph()
	deps := make(map[string][]services.Dependency)
	for _, d := range g.Edges() {
		deps[d.Source] = append(deps[d.Source], d)
	}
	for _, name := range g.Nodes() {
		fact := facts.Fact{
			Kind:  facts.KindService,
			Name:  name,
			Props: map[string]any{"endpoints": len(a.services.APISummary()[name])},
		}
		var topics []string
		seen := make(map[string]bool)
		for _, d := range deps[name] {
			if topic, ok := strings.CutPrefix(d.Details, "Listens to topic: "); ok && d.Type == "kafka" {
				topics = append(topics, topic)
			}
			if seen[d.Target] {
				continue
			}
			seen[d.Target] = true
			fact.Relations = append(fact.Relations, facts.Relation{Kind: facts.RelDependsOn, Target: d.Target})
		}
		if len(topics) > 0 {
			fact.Props["topics"] = topics
		}
		result = append(result, fact)
	}
	return result, nil
}

// serviceFor names the service owning path: its first directory, or the
// repository name for files at the root or under a bare src/ tree.
func (a *Analyzer) serviceFor(root, path string) string {
	if a.service != "" {
		return a.service
	}
	first, _, nested := strings.Cut(filepath.ToSlash(path), "/")
	if nested && first != "src" {
		return first
	}
	if root == "" {
		return defaultService
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return filepath.Base(abs)
}

func fileOf(p *project.Project, class string) string {
	for _, f := range p.Files {
		for _, c := range f.Classes {
			if c.Name == class {
				return f.Path
			}
		}
	}
	return ""
}
