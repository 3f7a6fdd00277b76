// Package services finds REST endpoints and cross-service links (Feign
// clients, Kafka listeners) declared through Spring annotations.
package services

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/dejo1307/javalens/internal/javaast"
)

// Endpoint is one REST handler method.
type Endpoint struct {
	Path    string `json:"path"`
	Method  string `json:"method"`
	Service string `json:"service"`
	Class   string `json:"class"`
	Handler string `json:"handler"`
	Line    int    `json:"line,omitempty"`
}

// Dependency is a directed link between two services.
type Dependency struct {
	Source  string `json:"source"`
	Target  string `json:"target"`
	Type    string `json:"type"` // "feign" or "kafka"
	Details string `json:"details"`
}

// KafkaSource is the pseudo-service that Kafka listeners depend on.
const KafkaSource = "kafka"

var mappingMethods = map[string]string{
	"GetMapping":    "GET",
	"PostMapping":   "POST",
	"PutMapping":    "PUT",
	"DeleteMapping": "DELETE",
	"PatchMapping":  "PATCH",
}

// Analyzer accumulates endpoints and dependencies across calls until Reset.
type Analyzer struct {
	endpoints    []Endpoint
	dependencies []Dependency
	services     map[string]bool
}

// New creates an empty Analyzer.
func New() *Analyzer {
	a := &Analyzer{}
	a.Reset()
	return a
}

// Reset clears everything accumulated so far.
func (a *Analyzer) Reset() {
	a.endpoints = nil
	a.dependencies = nil
	a.services = make(map[string]bool)
}

// Analyze parses src as part of service and records what it declares.
func (a *Analyzer) Analyze(src, service string) error {
	if service == "" {
		return &javaast.ValidationError{Field: "service", Reason: "empty service name"}
	}
	unit, err := javaast.ParseString(src)
	if err != nil {
		return err
	}
	defer unit.Close()
	a.AnalyzeUnit(unit, service)
	return nil
}

// AnalyzeUnit records the endpoints and dependencies declared in unit.
func (a *Analyzer) AnalyzeUnit(unit *javaast.CompilationUnit, service string) {
	a.services[service] = true
	decls, _ := unit.TypeDecls()
	for _, td := range decls {
		mods := td.Modifiers
		if mods.HasAnnotation("RestController") {
			a.restController(unit, td, service)
		}
		if feign, ok := mods.Annotation("FeignClient"); ok {
			if target := annotationValue(feign, "name", "value"); target != "" {
				a.dependencies = append(a.dependencies, Dependency{
					Source:  service,
					Target:  target,
					Type:    "feign",
					Details: "FeignClient interface: " + td.Name,
				})
			}
		}
		listeners := []javaast.Annotation{}
		if l, ok := mods.Annotation("KafkaListener"); ok {
			listeners = append(listeners, l)
		}
		for _, m := range unit.Methods(td) {
			if l, ok := m.Modifiers.Annotation("KafkaListener"); ok {
				listeners = append(listeners, l)
			}
		}
		for _, l := range listeners {
			for _, topic := range topics(l) {
				a.dependencies = append(a.dependencies, Dependency{
					Source:  KafkaSource,
					Target:  service,
					Type:    "kafka",
					Details: "Listens to topic: " + topic,
				})
			}
		}
	}
}

func (a *Analyzer) restController(unit *javaast.CompilationUnit, td javaast.TypeDecl, service string) {
	base := ""
	if rm, ok := td.Modifiers.Annotation("RequestMapping"); ok {
		base = annotationValue(rm, "value", "path")
	}
	for _, m := range unit.Methods(td) {
		verb, path, ok := handlerMapping(m.Modifiers)
		if !ok {
			continue
		}
		a.endpoints = append(a.endpoints, Endpoint{
			Path:    joinPath(base, path),
			Method:  verb,
			Service: service,
			Class:   td.Name,
			Handler: m.Name,
			Line:    m.Line,
		})
	}
}

// handlerMapping returns the HTTP verb and path of a handler method. A bare
// @RequestMapping defaults to GET unless it names a method.
func handlerMapping(mods javaast.Modifiers) (verb, path string, ok bool) {
	for _, ann := range mods.Annotations {
		if v, isShortcut := mappingMethods[ann.Name]; isShortcut {
			return v, annotationValue(ann, "value", "path"), true
		}
		if ann.Name == "RequestMapping" {
			verb = "GET"
			if m := ann.FirstValue("method"); m != "" {
				verb = strings.ToUpper(m[strings.LastIndexByte(m, '.')+1:])
			}
			return verb, annotationValue(ann, "value", "path"), true
		}
	}
	return "", "", false
}

// annotationValue returns the first of the named elements, falling back to
// the first element of any name.
func annotationValue(a javaast.Annotation, keys ...string) string {
	if v := a.FirstValue(keys...); v != "" {
		return v
	}
	for _, e := range a.Elements {
		if len(e.Values) > 0 && e.Values[0] != "" {
			return e.Values[0]
		}
	}
	return ""
}

func topics(a javaast.Annotation) []string {
	for _, key := range []string{"topics", "value"} {
		if vs, ok := a.Value(key); ok && len(vs) > 0 {
			return vs
		}
	}
	if v := annotationValue(a); v != "" {
		return []string{v}
	}
	return nil
}

func joinPath(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Endpoints returns every endpoint in discovery order.
func (a *Analyzer) Endpoints() []Endpoint {
	return append([]Endpoint(nil), a.endpoints...)
}

// Dependencies returns every dependency in discovery order.
func (a *Analyzer) Dependencies() []Dependency {
	return append([]Dependency(nil), a.dependencies...)
}

// Services returns the analysed service names, sorted.
func (a *Analyzer) Services() []string {
	out := make([]string, 0, len(a.services))
	for s := range a.services {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// APISummary groups endpoints by service, keeping discovery order within a
// service.
func (a *Analyzer) APISummary() map[string][]Endpoint {
	out := make(map[string][]Endpoint)
	for _, e := range a.endpoints {
		out[e.Service] = append(out[e.Service], e)
	}
	return out
}

// ServiceGraph returns the service dependency graph: every analysed service
// and every dependency endpoint is a node.
func (a *Analyzer) ServiceGraph() *Graph {
	g := &Graph{g: simple.NewDirectedGraph(), ids: make(map[string]int64)}
	for _, s := range a.Services() {
		g.node(s)
	}
	for _, d := range a.dependencies {
		from, to := g.node(d.Source), g.node(d.Target)
		g.edges = append(g.edges, d)
		if from != to && !g.g.HasEdgeFromTo(from, to) {
			g.g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
		}
	}
	return g
}

// Graph is a directed graph of services.
type Graph struct {
	g     *simple.DirectedGraph
	ids   map[string]int64
	names []string
	edges []Dependency
}

func (g *Graph) node(name string) int64 {
	if id, ok := g.ids[name]; ok {
		return id
	}
	id := int64(len(g.names))
	g.ids[name] = id
	g.names = append(g.names, name)
	g.g.AddNode(simple.Node(id))
	return id
}

// Nodes returns the service names, analysed services first.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.names...)
}

// Edges returns every dependency, duplicates included.
func (g *Graph) Edges() []Dependency {
	return append([]Dependency(nil), g.edges...)
}

// DependsOn returns the services name depends on, sorted.
func (g *Graph) DependsOn(name string) []string {
	id, ok := g.ids[name]
	if !ok {
		return nil
	}
	var out []string
	to := g.g.From(id)
	for to.Next() {
		out = append(out, g.names[to.Node().ID()])
	}
	sort.Strings(out)
	return out
}

// Cycles returns the groups of services that depend on each other
// transitively. Each group and the list of groups are sorted.
func (g *Graph) Cycles() [][]string {
	var out [][]string
	for _, scc := range topo.TarjanSCC(g.g) {
		if len(scc) < 2 {
			continue
		}
		group := make([]string, 0, len(scc))
		for _, n := range scc {
			group = append(group, g.names[n.ID()])
		}
		sort.Strings(group)
		out = append(out, group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
