package javaast

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderSource = `package com.acme.orders;

import java.util.List;
import java.util.concurrent.*;

@Entity
@Table(name = "CRPS_ORDER", schema = "legacy")
public class Order extends BaseEntity implements Serializable, Comparable<Order> {
    private final Customer customer;
    private List<LineItem> items, backorders;
    private int count;

    public Order(Customer customer) {
        this.customer = customer;
    }

    public void ship(String carrier, int... ids) {
        billing.charge("card", 42);
        this.audit();
        notify();
    }

    public abstract Invoice invoice();

    static class Line {
        void total() {}
    }
}

interface Repo extends CrudRepository, Auditable {
    int LIMIT = 10;
    Order find(long id);
}

enum Status {
    OPEN, CLOSED;
    private String label;
    String label() { return label; }
}
`

func parse(t *testing.T, src string) *CompilationUnit {
	t.Helper()
	u, err := ParseString(src)
	require.NoError(t, err)
	t.Cleanup(u.Close)
	return u
}

func TestParseRejectsEmptyInput(t *testing.T) {
	for _, src := range []string{"", "   \n\t "} {
		_, err := ParseString(src)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "source", verr.Field)
	}
}

func TestParseRejectsInvalidSource(t *testing.T) {
	_, err := ParseString("class A {\n  void m( {\n}\n")
	var perr *ParseError
	require.True(t, errors.As(err, &perr), "expected ParseError, got %v", err)
	assert.GreaterOrEqual(t, perr.Line, 1)
	assert.Contains(t, perr.Error(), "syntax error at line")
}

func TestTypeDecls(t *testing.T) {
	u := parse(t, orderSource)
	decls, skipped := u.TypeDecls()
	assert.Empty(t, skipped)

	var names []string
	for _, d := range decls {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"Order", "Line", "Repo", "Status"}, names)

	order := decls[0]
	assert.Equal(t, "class", order.Kind)
	assert.Equal(t, "BaseEntity", order.Superclass)
	assert.Equal(t, []string{"Serializable", "Comparable"}, order.Interfaces)
	assert.True(t, order.Modifiers.Has("public"))
	assert.True(t, order.Modifiers.HasAnnotation("Entity"))

	table, ok := order.Modifiers.Annotation("Table")
	require.True(t, ok)
	assert.Equal(t, "CRPS_ORDER", table.FirstValue("name", "value"))
	assert.Equal(t, "legacy", table.FirstValue("schema"))

	repo := decls[2]
	assert.Equal(t, "interface", repo.Kind)
	assert.Empty(t, repo.Superclass)
	assert.Equal(t, []string{"CrudRepository", "Auditable"}, repo.Interfaces)

	assert.Equal(t, "enum", decls[3].Kind)
}

func TestMembers(t *testing.T) {
	u := parse(t, orderSource)
	decls, _ := u.TypeDecls()

	methods := u.Methods(decls[0])
	require.Len(t, methods, 3)
	assert.True(t, methods[0].Constructor)
	assert.Equal(t, "ship", methods[1].Name)
	require.Len(t, methods[1].Params, 2)
	assert.Equal(t, "carrier", methods[1].Params[0].Name)
	assert.Equal(t, "String", u.SimpleTypeName(methods[1].Params[0].Type))
	assert.True(t, methods[1].Params[1].Variadic)
	assert.Equal(t, "ids", methods[1].Params[1].Name)
	assert.Nil(t, methods[2].Body)
	assert.Equal(t, "Invoice", u.SimpleTypeName(methods[2].ReturnType))

	fields := u.Fields(decls[0])
	require.Len(t, fields, 3)
	assert.True(t, fields[0].Modifiers.Has("final"))
	assert.Equal(t, []Declarator{{Name: "items", Line: 10}, {Name: "backorders", Line: 10}}, fields[1].Declarators)
	assert.Equal(t, []string{"List", "LineItem"}, u.TypeNames(fields[1].Type))

	repoFields := u.Fields(decls[2])
	require.Len(t, repoFields, 1)
	assert.Equal(t, "LIMIT", repoFields[0].Declarators[0].Name)

	statusMethods := u.Methods(decls[3])
	require.Len(t, statusMethods, 1)
	assert.Equal(t, "label", statusMethods[0].Name)
	assert.Len(t, u.Fields(decls[3]), 1)
}

func TestMethodBodiesIncludeEnumConstantBodies(t *testing.T) {
	u := parse(t, `enum Op {
    PLUS { int apply() { return 1; } },
    ZERO,
    MINUS { int apply() { return -1; } String label() { return "-"; } };
    abstract int apply();
}`)
	decls, _ := u.TypeDecls()
	require.Len(t, decls, 1)

	assert.Len(t, u.Methods(decls[0]), 1)

	var got []string
	for _, m := range u.MethodBodies(decls[0]) {
		got = append(got, fmt.Sprintf("%s:%d", m.Name, m.Line))
	}
	assert.Equal(t, []string{"apply:2", "apply:4", "label:4", "apply:5"}, got)
}

func TestInvocations(t *testing.T) {
	u := parse(t, orderSource)
	decls, _ := u.TypeDecls()
	ship := u.Methods(decls[0])[1]

	var calls []Invocation
	for _, n := range Walk(ship.Body, KindMethodInvocation) {
		inv, ok := u.Invocation(n)
		require.True(t, ok)
		calls = append(calls, inv)
	}
	require.Len(t, calls, 3)

	require.NotNil(t, calls[0].Qualifier)
	assert.Equal(t, "billing", *calls[0].Qualifier)
	assert.Equal(t, "charge", calls[0].Name)
	require.Len(t, calls[0].Args, 2)
	assert.Equal(t, "card", u.RenderArgument(calls[0].Args[0]))
	assert.Equal(t, "42", u.RenderArgument(calls[0].Args[1]))

	assert.Nil(t, calls[1].Qualifier, "this receiver counts as unqualified")
	assert.Equal(t, "audit", calls[1].Name)
	assert.Nil(t, calls[2].Qualifier)
}

func TestWalkPathContext(t *testing.T) {
	u := parse(t, orderSource)
	var got []string
	for path, n := range u.Walk(KindMethodInvocation) {
		inv, _ := u.Invocation(n)
		got = append(got, u.EnclosingClass(path)+"."+u.EnclosingMethod(path)+">"+inv.Name)
	}
	assert.Equal(t, []string{"Order.ship>charge", "Order.ship>audit", "Order.ship>notify"}, got)

	for path := range u.Walk(KindFieldDecl) {
		assert.Empty(t, u.EnclosingMethod(path))
	}
}

func TestWalkStopsEarly(t *testing.T) {
	u := parse(t, orderSource)
	count := 0
	for range u.Walk() {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
}

func TestPackageAndImports(t *testing.T) {
	u := parse(t, orderSource)
	assert.Equal(t, "com.acme.orders", u.PackageName())
	assert.Equal(t, []string{"java.util.List", "java.util.concurrent.*"}, u.Imports())

	bare := parse(t, "class A {}")
	assert.Empty(t, bare.PackageName())
	assert.Empty(t, bare.Imports())
}

func TestSimpleTypeName(t *testing.T) {
	u := parse(t, `class T {
    java.util.Map<String, List<Order>> a;
    Order[] b;
    int c;
    List<? extends Item> d;
}`)
	decls, _ := u.TypeDecls()
	fields := u.Fields(decls[0])
	require.Len(t, fields, 4)

	assert.Equal(t, "Map", u.SimpleTypeName(fields[0].Type))
	assert.Equal(t, []string{"Map", "String", "List", "Order"}, u.TypeNames(fields[0].Type))
	assert.Equal(t, "Order", u.SimpleTypeName(fields[1].Type))
	assert.Equal(t, "int", u.SimpleTypeName(fields[2].Type))
	assert.Equal(t, []string{"List", "Item"}, u.TypeNames(fields[3].Type))
}

func TestStringValue(t *testing.T) {
	u := parse(t, "class Q { String s = \"SELECT 1\"; String b = \"\"\"\n    hi\n    \"\"\"; }")
	var values []string
	for _, n := range u.Walk(KindStringLiteral) {
		values = append(values, u.StringValue(n))
	}
	require.Len(t, values, 2)
	assert.Equal(t, "SELECT 1", values[0])
	assert.Contains(t, values[1], "hi")
}
