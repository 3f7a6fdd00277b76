// Package declarations turns the class-kind declarations of a compilation
// unit into normalized ClassRecords.
package declarations

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dejo1307/javalens/internal/facts"
	"github.com/dejo1307/javalens/internal/javaast"
)

// TypeRef is a declared type reduced to simple names.
type TypeRef struct {
	Name string   `json:"name"`           // base type, e.g. "List"
	Args []string `json:"args,omitempty"` // type arguments, e.g. ["Order"]
}

// Names returns the base name followed by the type argument names.
func (t TypeRef) Names() []string {
	if t.Name == "" {
		return t.Args
	}
	return append([]string{t.Name}, t.Args...)
}

// Field is one declared field variable.
type Field struct {
	Name  string  `json:"name"`
	Type  TypeRef `json:"type"`
	Final bool    `json:"final,omitempty"`
	Line  int     `json:"line"`
}

// Method is one declared method signature.
type Method struct {
	Name       string    `json:"name"`
	ReturnType TypeRef   `json:"return_type"`
	ParamTypes []TypeRef `json:"param_types,omitempty"`
	Line       int       `json:"line"`
}

// ClassRecord is the normalized summary of one class-kind declaration.
// Methods and Fields hold simple names in declaration order; FieldDecls and
// MethodDecls carry the typed detail behind them.
type ClassRecord struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Line        int      `json:"line"`
	Methods     []string `json:"methods"`
	Fields      []string `json:"fields"`
	Extends     string   `json:"extends,omitempty"`
	Implements  []string `json:"implements"`
	Annotations []string `json:"annotations,omitempty"`
	FieldDecls  []Field  `json:"-"`
	MethodDecls []Method `json:"-"`
}

// Result is the outcome of extracting one compilation unit.
type Result struct {
	Classes     []ClassRecord
	Diagnostics []facts.Diagnostic
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithAllDeclarators records every variable of a multi-variable field
// statement instead of only the first one.
func WithAllDeclarators() Option {
	return func(e *Extractor) { e.allDeclarators = true }
}

// WithFile sets the path reported in diagnostics.
func WithFile(path string) Option {
	return func(e *Extractor) { e.file = path }
}

// Extractor builds ClassRecords. By default only the first variable of a
// field statement such as `int a, b;` is recorded; see WithAllDeclarators.
type Extractor struct {
	allDeclarators bool
	file           string
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract returns one ClassRecord per class, interface, enum and record
// declaration in the unit, nested declarations included, in source order.
// Declarations that cannot be decomposed are skipped with a diagnostic.
func (e *Extractor) Extract(unit *javaast.CompilationUnit) Result {
	var res Result
	decls, skipped := unit.TypeDecls()
	for _, err := range skipped {
		res.Diagnostics = append(res.Diagnostics, facts.Diagnostic{
			File:    e.file,
			Message: fmt.Sprintf("skipped declaration: %v", err),
		})
	}
	for _, td := range decls {
		res.Classes = append(res.Classes, e.record(unit, td))
	}
	return res
}

// ExtractSource parses src and extracts it.
func (e *Extractor) ExtractSource(src string) (Result, error) {
	unit, err := javaast.ParseString(src)
	if err != nil {
		return Result{}, err
	}
	defer unit.Close()
	return e.Extract(unit), nil
}

func (e *Extractor) record(unit *javaast.CompilationUnit, td javaast.TypeDecl) ClassRecord {
	rec := ClassRecord{
		Name:       td.Name,
		Kind:       td.Kind,
		Line:       td.Line,
		Methods:    []string{},
		Fields:     []string{},
		Extends:    td.Superclass,
		Implements: append([]string{}, td.Interfaces...),
	}
	for _, a := range td.Modifiers.Annotations {
		rec.Annotations = append(rec.Annotations, a.Name)
	}

	for _, f := range unit.Fields(td) {
		decls := f.Declarators
		if len(decls) == 0 {
			continue
		}
		if !e.allDeclarators {
			decls = decls[:1]
		}
		ref := typeRef(unit, f.Type)
		for _, d := range decls {
			rec.Fields = append(rec.Fields, d.Name)
			rec.FieldDecls = append(rec.FieldDecls, Field{
				Name:  d.Name,
				Type:  ref,
				Final: f.Modifiers.Has("final") || f.Node.Kind() == javaast.KindConstantDecl,
				Line:  d.Line,
			})
		}
	}

	for _, m := range unit.Methods(td) {
		if m.Constructor {
			continue
		}
		method := Method{Name: m.Name, ReturnType: typeRef(unit, m.ReturnType), Line: m.Line}
		for _, p := range m.Params {
			method.ParamTypes = append(method.ParamTypes, typeRef(unit, p.Type))
		}
		rec.Methods = append(rec.Methods, m.Name)
		rec.MethodDecls = append(rec.MethodDecls, method)
	}
	return rec
}

func typeRef(unit *javaast.CompilationUnit, n *sitter.Node) TypeRef {
	names := unit.TypeNames(n)
	if len(names) == 0 {
		return TypeRef{}
	}
	ref := TypeRef{Name: names[0]}
	if len(names) > 1 {
		ref.Args = names[1:]
	}
	return ref
}
