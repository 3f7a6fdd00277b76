package diagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dejo1307/javalens/internal/callgraph"
	"github.com/dejo1307/javalens/internal/declarations"
	"github.com/dejo1307/javalens/internal/relations"
	"github.com/dejo1307/javalens/internal/sequence"
	"github.com/dejo1307/javalens/internal/services"
)

func TestClasses(t *testing.T) {
	records := []declarations.ClassRecord{
		{Name: "Dog", Kind: "class", Fields: []string{"name"}, Methods: []string{"bark"}, Extends: "Animal", Implements: []string{"Runnable"}},
		{Name: "Runnable", Kind: "interface", Methods: []string{"run"}, Implements: []string{"Task"}},
	}
	want := `@startuml
class Dog {
  name
  +bark()
}
Dog --|> Animal
Dog ..|> Runnable
interface Runnable {
  +run()
}
Runnable --|> Task
@enduml
`
	assert.Equal(t, want, Classes(records))
}

func TestRelationships(t *testing.T) {
	res, err := declarations.New().ExtractSource(`class Kennel extends Building { private final Dog dog; }`)
	require.NoError(t, err)
	g := relations.NewBuilder().Build(res.Classes)

	want := `@startuml
class Kennel
class Building
class Dog
Kennel --|> Building : extends
Kennel *-- Dog : field dog
@enduml
`
	assert.Equal(t, want, Relationships(g))
}

func TestSequence(t *testing.T) {
	res, err := sequence.Trace("ship", `class Order { void ship() { billing.charge("card"); order.items().size(); } }`)
	require.NoError(t, err)

	out := Sequence(res)
	assert.Contains(t, out, "participant Order\nparticipant billing\n")
	assert.Contains(t, out, "Order -> billing : charge(card)\n")
	assert.Contains(t, out, `participant "order.items()" as n1`)
	assert.Contains(t, out, "Order -> n1 : size()\n")
	assert.True(t, strings.HasSuffix(out, "@enduml\n"))
}

func TestSequenceWithoutCalls(t *testing.T) {
	res, err := sequence.Trace("idle", `class Quiet { void idle() {} }`)
	require.NoError(t, err)

	out := Sequence(res)
	assert.Contains(t, out, "participant Quiet\n")
	assert.Contains(t, out, "no calls found in idle()")
	assert.NotContains(t, out, "->")
}

func TestSequenceIsDeterministic(t *testing.T) {
	src := `class P { void go() { z.a(); y.b(); x.c(); } }`
	first, err := sequence.Trace("go", src)
	require.NoError(t, err)
	second, err := sequence.Trace("go", src)
	require.NoError(t, err)
	assert.Equal(t, Sequence(first), Sequence(second))
}

func TestCallGraph(t *testing.T) {
	out := CallGraph(
		[]string{"A.run", "B.go"},
		[]callgraph.Edge{{Caller: "A.run", Callee: "B.go"}},
	)
	assert.Equal(t, `@startuml
rectangle "A.run" as n1
rectangle "B.go" as n2
n1 --> n2
@enduml
`, out)
}

func TestServices(t *testing.T) {
	a := services.New()
	require.NoError(t, a.Analyze(`@KafkaListener(topics = "t") class L {}`, "shipping"))

	out := Services(a.ServiceGraph())
	assert.Contains(t, out, "component shipping\n")
	assert.Contains(t, out, "queue kafka\n")
	assert.Contains(t, out, "kafka --> shipping : kafka\n")
}
