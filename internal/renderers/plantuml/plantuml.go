// Package plantuml renders the class, relationship, call and service
// diagrams of a project as PlantUML artifacts.
package plantuml

import (
	"context"

	"github.com/dejo1307/javalens/internal/analyzers/servicemap"
	"github.com/dejo1307/javalens/internal/callgraph"
	"github.com/dejo1307/javalens/internal/diagram"
	"github.com/dejo1307/javalens/internal/facts"
	"github.com/dejo1307/javalens/internal/project"
	"github.com/dejo1307/javalens/internal/relations"
)

const mimeType = "text/x-plantuml"

// Renderer produces one .puml artifact per diagram kind.
type Renderer struct {
	service string
}

// New creates a Renderer. service names every file's service in the
// service diagram; empty derives it from file paths.
func New(service string) *Renderer {
	return &Renderer{service: service}
}

func (r *Renderer) Name() string {
	return "diagrams"
}

func (r *Renderer) Render(ctx context.Context, snapshot *facts.Snapshot, p *project.Project) ([]facts.Artifact, error) {
	if p == nil {
		return nil, nil
	}

	classes := p.Classes()
	rel := relations.NewBuilder().Build(classes)

	calls := callgraph.New()
	for _, u := range p.Units() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		calls.Build(u)
	}

	svc := servicemap.New(r.service)
	if _, err := svc.Analyze(ctx, p); err != nil {
		return nil, err
	}

	return []facts.Artifact{
		artifact("classes.puml", diagram.Classes(classes)),
		artifact("relationships.puml", diagram.Relationships(rel)),
		artifact("callgraph.puml", diagram.CallGraph(calls.Methods(), calls.Edges())),
		artifact("services.puml", diagram.Services(svc.Services().ServiceGraph())),
	}, nil
}

func artifact(name, content string) facts.Artifact {
	return facts.Artifact{Name: name, Content: []byte(content), Type: mimeType}
}
