// Package sequence traces the calls made by one method into an ordered list
// of interactions suitable for a sequence diagram.
package sequence

import (
	"fmt"
	"sort"

	"github.com/dejo1307/javalens/internal/javaast"
)

// Interaction is one call made by the traced method.
type Interaction struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	Message   string   `json:"message"`
	Arguments []string `json:"arguments"`
}

// Result is the trace of one method.
type Result struct {
	Class        string        `json:"class"`
	Method       string        `json:"method"`
	Line         int           `json:"line"`
	Interactions []Interaction `json:"interactions"`
}

// Participants returns the declaring class and every interaction endpoint,
// deduplicated and sorted. Interactions keep their discovery order.
func (r *Result) Participants() []string {
	seen := map[string]bool{r.Class: true}
	for _, in := range r.Interactions {
		seen[in.From] = true
		seen[in.To] = true
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// NotFoundError reports a method name declared nowhere in the input.
type NotFoundError struct {
	Method string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("method %q not found", e.Method)
}

// Tracer traces methods. Every Trace starts from a cleared state.
type Tracer struct {
	last *Result
}

// New creates a Tracer.
func New() *Tracer {
	return &Tracer{}
}

// Reset forgets the last trace.
func (t *Tracer) Reset() {
	t.last = nil
}

// Last returns the result of the last successful Trace, or nil.
func (t *Tracer) Last() *Result {
	return t.last
}

// Trace selects the first method named method, scanning the sources in
// order, their class declarations in source order and each class's methods
// in declaration order, and records the calls in its body depth-first.
// Methods with the same name in later classes are ignored.
func (t *Tracer) Trace(method string, sources ...string) (*Result, error) {
	t.Reset()
	if method == "" {
		return nil, &javaast.ValidationError{Field: "method", Reason: "empty method name"}
	}
	if len(sources) == 0 {
		return nil, &javaast.ValidationError{Field: "source", Reason: "no source text"}
	}

	for _, src := range sources {
		unit, err := javaast.ParseString(src)
		if err != nil {
			return nil, err
		}
		res, found := trace(unit, method)
		unit.Close()
		if found {
			t.last = res
			return res, nil
		}
	}
	return nil, &NotFoundError{Method: method}
}

// TraceUnits is Trace over already parsed units. The units stay open.
func (t *Tracer) TraceUnits(method string, units ...*javaast.CompilationUnit) (*Result, error) {
	t.Reset()
	if method == "" {
		return nil, &javaast.ValidationError{Field: "method", Reason: "empty method name"}
	}
	if len(units) == 0 {
		return nil, &javaast.ValidationError{Field: "source", Reason: "no compilation units"}
	}
	for _, unit := range units {
		if res, found := trace(unit, method); found {
			t.last = res
			return res, nil
		}
	}
	return nil, &NotFoundError{Method: method}
}

// Trace is a one-shot Tracer.Trace.
func Trace(method string, sources ...string) (*Result, error) {
	return New().Trace(method, sources...)
}

func trace(unit *javaast.CompilationUnit, method string) (*Result, bool) {
	decls, _ := unit.TypeDecls()
	for _, td := range decls {
		for _, m := range unit.MethodBodies(td) {
			if m.Constructor || m.Name != method {
				continue
			}
			res := &Result{Class: td.Name, Method: m.Name, Line: m.Line, Interactions: []Interaction{}}
			if m.Body == nil {
				return res, true
			}
			for path, n := range javaast.Walk(m.Body, javaast.KindMethodInvocation) {
				if path.EnclosingType() != nil {
					continue
				}
				inv, ok := unit.Invocation(n)
				if !ok {
					continue
				}
				in := Interaction{From: td.Name, To: td.Name, Message: inv.Name, Arguments: []string{}}
				if inv.Qualifier != nil {
					in.To = *inv.Qualifier
				}
				for _, a := range inv.Args {
					in.Arguments = append(in.Arguments, unit.RenderArgument(a))
				}
				res.Interactions = append(res.Interactions, in)
			}
			return res, true
		}
	}
	return nil, false
}
