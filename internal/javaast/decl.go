package javaast

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// TypeDecl is a class, interface, enum or record declaration. Line is the
// line of its name, after any annotations.
type TypeDecl struct {
	Node       *sitter.Node
	Kind       string // "class", "interface", "enum" or "record"
	Name       string
	Line       int
	Modifiers  Modifiers
	Superclass string   // simple name, "" when absent
	Interfaces []string // implemented (or, for interfaces, extended) simple names
	Body       *sitter.Node
}

// MethodDecl is a method or constructor declaration.
type MethodDecl struct {
	Node        *sitter.Node
	Name        string
	Line        int
	Constructor bool
	Modifiers   Modifiers
	ReturnType  *sitter.Node // nil for constructors
	Params      []Param
	Body        *sitter.Node // nil for abstract and native methods
}

// Param is one formal parameter.
type Param struct {
	Name     string
	Type     *sitter.Node
	Line     int
	Variadic bool
}

// Declarator is one variable introduced by a field, constant or local
// variable declaration.
type Declarator struct {
	Name string
	Line int
}

// FieldDecl is a field (or interface constant) declaration statement.
type FieldDecl struct {
	Node        *sitter.Node
	Type        *sitter.Node
	Modifiers   Modifiers
	Declarators []Declarator
	Line        int
}

// Invocation is a method call expression. Qualifier is nil for unqualified
// calls; a `this` receiver counts as unqualified.
type Invocation struct {
	Node      *sitter.Node
	Qualifier *string
	Name      string
	Args      []*sitter.Node
	Line      int
}

// Modifiers holds the keyword modifiers and annotations of a declaration.
type Modifiers struct {
	Keywords    []string
	Annotations []Annotation
}

// Has reports whether the keyword modifier is present.
func (m Modifiers) Has(keyword string) bool {
	for _, k := range m.Keywords {
		if k == keyword {
			return true
		}
	}
	return false
}

// Annotation returns the annotation with the given simple name.
func (m Modifiers) Annotation(name string) (Annotation, bool) {
	for _, a := range m.Annotations {
		if a.Name == name {
			return a, true
		}
	}
	return Annotation{}, false
}

// HasAnnotation reports whether any of the named annotations is present.
func (m Modifiers) HasAnnotation(names ...string) bool {
	for _, n := range names {
		if _, ok := m.Annotation(n); ok {
			return true
		}
	}
	return false
}

// Annotation is a marker or normal annotation use.
type Annotation struct {
	Name     string // simple name, without '@' or package
	Line     int
	Elements []AnnotationElement
}

// AnnotationElement is one key/value pair of an annotation. A single bare
// value is keyed "value". Array initializers contribute one entry per element.
type AnnotationElement struct {
	Key    string
	Values []string
}

// Value returns the values bound to key.
func (a Annotation) Value(key string) ([]string, bool) {
	for _, e := range a.Elements {
		if e.Key == key {
			return e.Values, true
		}
	}
	return nil, false
}

// FirstValue returns the first value of the first key present, or "".
func (a Annotation) FirstValue(keys ...string) string {
	for _, k := range keys {
		if vs, ok := a.Value(k); ok && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

// Text returns the source text of n, or "" for nil.
func (u *CompilationUnit) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(u.Source)
}

func (u *CompilationUnit) nameOf(n *sitter.Node) string {
	return u.Text(n.ChildByFieldName("name"))
}

func lineOf(n *sitter.Node) int {
	return int(n.StartPosition().Row) + 1
}

// TypeDecls returns every class-kind declaration of the unit, nested ones
// included, in source order. Declarations that cannot be decomposed are
// reported through skipped.
func (u *CompilationUnit) TypeDecls() (decls []TypeDecl, skipped []error) {
	for _, n := range u.Walk(TypeDeclKinds...) {
		td, err := u.TypeDecl(n)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		decls = append(decls, td)
	}
	return decls, skipped
}

// TypeDecl decomposes one class-kind declaration node.
func (u *CompilationUnit) TypeDecl(n *sitter.Node) (TypeDecl, error) {
	if !isTypeDeclKind(n.Kind()) {
		return TypeDecl{}, &ValidationError{Field: "declaration", Reason: fmt.Sprintf("%s is not a type declaration", n.Kind())}
	}
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil || u.Text(nameNode) == "" {
		return TypeDecl{}, &ValidationError{
			Field:  "declaration",
			Reason: fmt.Sprintf("%s at line %d has no name", n.Kind(), lineOf(n)),
		}
	}

	td := TypeDecl{
		Node:      n,
		Kind:      strings.TrimSuffix(n.Kind(), "_declaration"),
		Name:      u.Text(nameNode),
		Line:      lineOf(nameNode),
		Modifiers: u.modifiers(n),
		Body:      n.ChildByFieldName("body"),
	}

	if sc := n.ChildByFieldName("superclass"); sc != nil && sc.NamedChildCount() > 0 {
		td.Superclass = u.SimpleTypeName(sc.NamedChild(0))
	}
	if si := n.ChildByFieldName("interfaces"); si != nil {
		td.Interfaces = u.typeList(si)
	}
	if ext := findChildByKind(n, "extends_interfaces"); ext != nil {
		td.Interfaces = append(td.Interfaces, u.typeList(ext)...)
	}
	return td, nil
}

func (u *CompilationUnit) typeList(n *sitter.Node) []string {
	list := findChildByKind(n, "type_list")
	if list == nil {
		return nil
	}
	var names []string
	for i := range list.NamedChildCount() {
		if name := u.SimpleTypeName(list.NamedChild(i)); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// members yields the direct member declarations of a type body. Enum
// members live one level down in enum_body_declarations.
func members(td TypeDecl) []*sitter.Node {
	if td.Body == nil {
		return nil
	}
	var out []*sitter.Node
	for i := range td.Body.NamedChildCount() {
		child := td.Body.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Kind() == "enum_body_declarations" {
			for j := range child.NamedChildCount() {
				if c := child.NamedChild(j); c != nil {
					out = append(out, c)
				}
			}
			continue
		}
		out = append(out, child)
	}
	return out
}

// Methods returns the methods and constructors declared directly in td, in
// source order. Methods of nested types are not included.
func (u *CompilationUnit) Methods(td TypeDecl) []MethodDecl {
	return u.methodsOf(members(td))
}

// MethodBodies returns Methods(td) together with the methods declared in the
// bodies of td's enum constants, in source order. Calls made in a constant
// body belong to the enum.
func (u *CompilationUnit) MethodBodies(td TypeDecl) []MethodDecl {
	var nodes []*sitter.Node
	for _, n := range members(td) {
		if n.Kind() != "enum_constant" {
			nodes = append(nodes, n)
			continue
		}
		if body := n.ChildByFieldName("body"); body != nil {
			for i := range body.NamedChildCount() {
				if c := body.NamedChild(i); c != nil {
					nodes = append(nodes, c)
				}
			}
		}
	}
	return u.methodsOf(nodes)
}

func (u *CompilationUnit) methodsOf(nodes []*sitter.Node) []MethodDecl {
	var out []MethodDecl
	for _, n := range nodes {
		if n.Kind() != KindMethodDecl && n.Kind() != KindConstructorDecl {
			continue
		}
		if m, ok := u.Method(n); ok {
			out = append(out, m)
		}
	}
	return out
}

// Method decomposes a method or constructor declaration node.
func (u *CompilationUnit) Method(n *sitter.Node) (MethodDecl, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return MethodDecl{}, false
	}
	m := MethodDecl{
		Node:        n,
		Name:        u.Text(nameNode),
		Line:        lineOf(nameNode),
		Constructor: n.Kind() == KindConstructorDecl,
		Modifiers:   u.modifiers(n),
		ReturnType:  n.ChildByFieldName("type"),
		Body:        n.ChildByFieldName("body"),
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		m.Params = u.params(params)
	}
	return m, true
}

func (u *CompilationUnit) params(list *sitter.Node) []Param {
	var out []Param
	for i := range list.NamedChildCount() {
		p := list.NamedChild(i)
		if p == nil {
			continue
		}
		switch p.Kind() {
		case KindFormalParameter:
			out = append(out, Param{
				Name: u.nameOf(p),
				Type: p.ChildByFieldName("type"),
				Line: lineOf(p),
			})
		case KindSpreadParameter:
			param := Param{Line: lineOf(p), Variadic: true}
			for j := range p.NamedChildCount() {
				c := p.NamedChild(j)
				switch {
				case c == nil || c.Kind() == "modifiers":
				case c.Kind() == KindVariableDeclarator:
					param.Name = u.nameOf(c)
				case param.Type == nil:
					param.Type = c
				}
			}
			out = append(out, param)
		}
	}
	return out
}

// Fields returns the field and constant declarations made directly in td.
func (u *CompilationUnit) Fields(td TypeDecl) []FieldDecl {
	var out []FieldDecl
	for _, n := range members(td) {
		if n.Kind() == KindFieldDecl || n.Kind() == KindConstantDecl {
			out = append(out, u.Field(n))
		}
	}
	return out
}

// Field decomposes a field, constant or local variable declaration.
func (u *CompilationUnit) Field(n *sitter.Node) FieldDecl {
	return FieldDecl{
		Node:        n,
		Type:        n.ChildByFieldName("type"),
		Modifiers:   u.modifiers(n),
		Declarators: u.declarators(n),
		Line:        lineOf(n),
	}
}

func (u *CompilationUnit) declarators(n *sitter.Node) []Declarator {
	var out []Declarator
	for i := range n.NamedChildCount() {
		c := n.NamedChild(i)
		if c == nil || c.Kind() != KindVariableDeclarator {
			continue
		}
		if name := u.nameOf(c); name != "" {
			out = append(out, Declarator{Name: name, Line: lineOf(c)})
		}
	}
	return out
}

// Invocation decomposes a method_invocation node. It reports false when the
// call carries no member name.
func (u *CompilationUnit) Invocation(n *sitter.Node) (Invocation, bool) {
	if n.Kind() != KindMethodInvocation {
		return Invocation{}, false
	}
	name := u.nameOf(n)
	if name == "" {
		return Invocation{}, false
	}
	inv := Invocation{Node: n, Name: name, Line: lineOf(n)}
	if obj := n.ChildByFieldName("object"); obj != nil && obj.Kind() != "this" {
		q := u.Text(obj)
		inv.Qualifier = &q
	}
	if args := n.ChildByFieldName("arguments"); args != nil {
		for i := range args.NamedChildCount() {
			if a := args.NamedChild(i); a != nil {
				inv.Args = append(inv.Args, a)
			}
		}
	}
	return inv, true
}

func (u *CompilationUnit) modifiers(decl *sitter.Node) Modifiers {
	var m Modifiers
	mods := findChildByKind(decl, "modifiers")
	if mods == nil {
		return m
	}
	for i := range mods.ChildCount() {
		c := mods.Child(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "marker_annotation", "annotation":
			m.Annotations = append(m.Annotations, u.annotation(c))
		default:
			if !c.IsNamed() {
				m.Keywords = append(m.Keywords, c.Kind())
			}
		}
	}
	return m
}

func (u *CompilationUnit) annotation(n *sitter.Node) Annotation {
	a := Annotation{
		Name: lastSegment(u.Text(n.ChildByFieldName("name"))),
		Line: lineOf(n),
	}
	args := n.ChildByFieldName("arguments")
	if args == nil {
		return a
	}
	for i := range args.NamedChildCount() {
		c := args.NamedChild(i)
		if c == nil {
			continue
		}
		if c.Kind() == "element_value_pair" {
			a.Elements = append(a.Elements, AnnotationElement{
				Key:    u.Text(c.ChildByFieldName("key")),
				Values: u.elementValues(c.ChildByFieldName("value")),
			})
			continue
		}
		a.Elements = append(a.Elements, AnnotationElement{Key: "value", Values: u.elementValues(c)})
	}
	return a
}

func (u *CompilationUnit) elementValues(n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	if n.Kind() != "element_value_array_initializer" {
		return []string{u.RenderArgument(n)}
	}
	var out []string
	for i := range n.NamedChildCount() {
		if c := n.NamedChild(i); c != nil {
			out = append(out, u.elementValues(c)...)
		}
	}
	return out
}

// PackageName returns the declared package of the unit, or "" when there is
// none.
func (u *CompilationUnit) PackageName() string {
	pkg := findChildByKind(u.Root(), KindPackage)
	if pkg == nil {
		return ""
	}
	for i := range pkg.NamedChildCount() {
		c := pkg.NamedChild(i)
		if c != nil && (c.Kind() == "scoped_identifier" || c.Kind() == "identifier") {
			return u.Text(c)
		}
	}
	return ""
}

// Imports returns the imported names in source order. On-demand imports end
// in ".*".
func (u *CompilationUnit) Imports() []string {
	var out []string
	root := u.Root()
	for i := range root.NamedChildCount() {
		imp := root.NamedChild(i)
		if imp == nil || imp.Kind() != KindImport {
			continue
		}
		var name string
		for j := range imp.NamedChildCount() {
			c := imp.NamedChild(j)
			switch {
			case c == nil:
			case c.Kind() == "scoped_identifier" || c.Kind() == "identifier":
				name = u.Text(c)
			case c.Kind() == "asterisk":
				name += ".*"
			}
		}
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
