package renderers

import (
	"context"

	"github.com/dejo1307/javalens/internal/facts"
	"github.com/dejo1307/javalens/internal/project"
)

// Renderer produces output artifacts from a snapshot.
type Renderer interface {
	// Name returns the renderer identifier (e.g. "summary").
	Name() string
	// Render produces artifacts from the given snapshot and the project it
	// was derived from. The project may be nil when only facts are loaded.
	Render(ctx context.Context, snapshot *facts.Snapshot, p *project.Project) ([]facts.Artifact, error)
}

// Registry holds renderers in registration order. Registering a renderer
// under a name already taken replaces the earlier one in place.
type Registry struct {
	items []Renderer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds rnd, replacing any renderer with the same name.
func (r *Registry) Register(rnd Renderer) {
	for i, cur := range r.items {
		if cur.Name() == rnd.Name() {
			r.items[i] = rnd
			return
		}
	}
	r.items = append(r.items, rnd)
}

// Enabled returns the renderers whose names pass enabled, in registration
// order. A nil enabled keeps all of them.
func (r *Registry) Enabled(enabled func(name string) bool) []Renderer {
	out := make([]Renderer, 0, len(r.items))
	for _, it := range r.items {
		if enabled == nil || enabled(it.Name()) {
			out = append(out, it)
		}
	}
	return out
}

// Names lists the registered names.
func (r *Registry) Names() []string {
	names := make([]string, len(r.items))
	for i, it := range r.items {
		names[i] = it.Name()
	}
	return names
}
