package analyzers

import (
	"context"

	"github.com/dejo1307/javalens/internal/facts"
	"github.com/dejo1307/javalens/internal/project"
)

// Analyzer turns an aggregated project into facts.
type Analyzer interface {
	// Name returns the analyzer identifier (e.g. "structure", "services").
	Name() string
	// Analyze inspects the project and returns the facts it derives.
	Analyze(ctx context.Context, p *project.Project) ([]facts.Fact, error)
}

// Registry holds analyzers in registration order. Registering a analyzer
// under a name already taken replaces the earlier one in place.
type Registry struct {
	items []Analyzer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a, replacing any analyzer with the same name.
func (r *Registry) Register(a Analyzer) {
	for i, cur := range r.items {
		if cur.Name() == a.Name() {
			r.items[i] = a
			return
		}
	}
	r.items = append(r.items, a)
}

// Enabled returns the analyzers whose names pass enabled, in registration
// order. A nil enabled keeps all of them.
func (r *Registry) Enabled(enabled func(name string) bool) []Analyzer {
	out := make([]Analyzer, 0, len(r.items))
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
