// Package diagram renders analysis results as PlantUML text. Rendering the
// text to an image is left to external tooling.
package diagram

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dejo1307/javalens/internal/callgraph"
	"github.com/dejo1307/javalens/internal/declarations"
	"github.com/dejo1307/javalens/internal/relations"
	"github.com/dejo1307/javalens/internal/sequence"
	"github.com/dejo1307/javalens/internal/services"
)

const (
	start = "@startuml"
	end   = "@enduml"
)

var plainName = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// aliases maps arbitrary labels to PlantUML-safe identifiers. Plain Java
// identifiers are used as is; anything else gets a quoted declaration.
type aliases struct {
	ids map[string]string
	n   int
}

func newAliases() *aliases {
	return &aliases{ids: make(map[string]string)}
}

func (a *aliases) id(label string) string {
	if id, ok := a.ids[label]; ok {
		return id
	}
	id := label
	if !plainName.MatchString(label) {
		a.n++
		id = fmt.Sprintf("n%d", a.n)
	}
	a.ids[label] = id
	return id
}

// declare returns the declaration line for label with the given keyword.
func (a *aliases) declare(keyword, label string) string {
	id := a.id(label)
	if id == label {
		return keyword + " " + label
	}
	return fmt.Sprintf("%s %q as %s", keyword, label, id)
}

// Classes renders a class diagram of the records: one block per class with
// its fields and methods, followed by its inheritance and implementation
// arrows.
func Classes(records []declarations.ClassRecord) string {
	var b strings.Builder
	b.WriteString(start + "\n")
	for _, rec := range records {
		keyword := "class"
		stereotype := ""
		switch rec.Kind {
		case "interface", "enum":
			keyword = rec.Kind
		case "record":
			stereotype = " <<record>>"
		}
		fmt.Fprintf(&b, "%s %s%s {\n", keyword, rec.Name, stereotype)
		for _, f := range rec.Fields {
			fmt.Fprintf(&b, "  %s\n", f)
		}
		for _, m := range rec.Methods {
			fmt.Fprintf(&b, "  +%s()\n", m)
		}
		b.WriteString("}\n")
		if rec.Extends != "" {
			fmt.Fprintf(&b, "%s --|> %s\n", rec.Name, rec.Extends)
		}
		arrow := "..|>"
		if rec.Kind == "interface" {
			arrow = "--|>"
		}
		for _, iface := range rec.Implements {
			fmt.Fprintf(&b, "%s %s %s\n", rec.Name, arrow, iface)
		}
	}
	b.WriteString(end + "\n")
	return b.String()
}

var arrows = map[relations.Kind]string{
	relations.Inheritance:    "--|>",
	relations.Implementation: "..|>",
	relations.Composition:    "*--",
	relations.Association:    "-->",
}

// Relationships renders every node and edge of a relationship graph.
func Relationships(g *relations.Graph) string {
	var b strings.Builder
	b.WriteString(start + "\n")
	for _, n := range g.Nodes() {
		fmt.Fprintf(&b, "class %s\n", n)
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(&b, "%s %s %s : %s\n", e.Source, arrows[e.Kind], e.Target, e.Details)
	}
	b.WriteString(end + "\n")
	return b.String()
}

// Sequence renders a traced method. Participants are listed sorted, the
// messages in discovery order. A method without calls still names its class
// and says so in a note.
func Sequence(res *sequence.Result) string {
	al := newAliases()
	var b strings.Builder
	b.WriteString(start + "\n")
	fmt.Fprintf(&b, "title %s.%s\n", res.Class, res.Method)
	for _, p := range res.Participants() {
		b.WriteString(al.declare("participant", p) + "\n")
	}
	if len(res.Interactions) == 0 {
		fmt.Fprintf(&b, "note over %s : no calls found in %s()\n", al.id(res.Class), res.Method)
	}
	for _, in := range res.Interactions {
		fmt.Fprintf(&b, "%s -> %s : %s(%s)\n", al.id(in.From), al.id(in.To), in.Message, strings.Join(in.Arguments, ", "))
	}
	b.WriteString(end + "\n")
	return b.String()
}

// CallGraph renders call edges between method identifiers.
func CallGraph(methods []string, edges []callgraph.Edge) string {
	al := newAliases()
	var b strings.Builder
	b.WriteString(start + "\n")
	for _, m := range methods {
		b.WriteString(al.declare("rectangle", m) + "\n")
	}
	for _, e := range edges {
		fmt.Fprintf(&b, "%s --> %s\n", al.id(e.Caller), al.id(e.Callee))
	}
	b.WriteString(end + "\n")
	return b.String()
}

// Services renders a service dependency graph. Kafka is drawn as a queue.
func Services(g *services.Graph) string {
	al := newAliases()
	var b strings.Builder
	b.WriteString(start + "\n")
	for _, n := range g.Nodes() {
		keyword := "component"
		if n == services.KafkaSource {
			keyword = "queue"
		}
		b.WriteString(al.declare(keyword, n) + "\n")
	}
	for _, d := range g.Edges() {
		fmt.Fprintf(&b, "%s --> %s : %s\n", al.id(d.Source), al.id(d.Target), d.Type)
	}
	b.WriteString(end + "\n")
	return b.String()
}
