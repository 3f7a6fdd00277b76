package explainers

import (
	"context"

	"github.com/dejo1307/javalens/internal/facts"
)

// Explainer reads the fact store of a finished analysis and reports
// insights about it.
type Explainer interface {
	Name() string
	Explain(ctx context.Context, store *facts.Store) ([]facts.Insight, error)
}

// Registry holds explainers in registration order. Registering a explainer
// under a name already taken replaces the earlier one in place.
type Registry struct {
	items []Explainer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds e, replacing any explainer with the same name.
func (r *Registry) Register(e Explainer) {
	for i, cur := range r.items {
		if cur.Name() == e.Name() {
			r.items[i] = e
			return
		}
	}
	r.items = append(r.items, e)
}

// Enabled returns the explainers whose names pass enabled, in registration
// order. A nil enabled keeps all of them.
func (r *Registry) Enabled(enabled func(name string) bool) []Explainer {
	out := make([]Explainer, 0, len(r.items))
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
