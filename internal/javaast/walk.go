package javaast

import (
	"iter"
	"slices"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Node kinds used across the analyzers.
const (
	KindProgram            = "program"
	KindPackage            = "package_declaration"
	KindImport             = "import_declaration"
	KindClassDecl          = "class_declaration"
	KindInterfaceDecl      = "interface_declaration"
	KindEnumDecl           = "enum_declaration"
	KindRecordDecl         = "record_declaration"
	KindMethodDecl         = "method_declaration"
	KindConstructorDecl    = "constructor_declaration"
	KindFieldDecl          = "field_declaration"
	KindConstantDecl       = "constant_declaration"
	KindLocalVarDecl       = "local_variable_declaration"
	KindMethodInvocation   = "method_invocation"
	KindStringLiteral      = "string_literal"
	KindFormalParameter    = "formal_parameter"
	KindSpreadParameter    = "spread_parameter"
	KindVariableDeclarator = "variable_declarator"
)

// TypeDeclKinds lists the class-kind declarations the grammar exposes uniformly.
var TypeDeclKinds = []string{KindClassDecl, KindInterfaceDecl, KindEnumDecl, KindRecordDecl}

// Path holds the ancestors of a visited node, outermost first. It is only
// valid for the duration of a single iteration step; Clone it to retain it.
type Path []*sitter.Node

// Clone returns a copy of the path that survives further iteration.
func (p Path) Clone() Path {
	return slices.Clone(p)
}

// EnclosingType returns the nearest class-kind declaration on the path, or nil.
func (p Path) EnclosingType() *sitter.Node {
	for i := len(p) - 1; i >= 0; i-- {
		if isTypeDeclKind(p[i].Kind()) {
			return p[i]
		}
	}
	return nil
}

// EnclosingMethod returns the nearest method or constructor declaration on the
// path, or nil.
func (p Path) EnclosingMethod() *sitter.Node {
	for i := len(p) - 1; i >= 0; i-- {
		switch p[i].Kind() {
		case KindMethodDecl, KindConstructorDecl:
			return p[i]
		}
	}
	return nil
}

// EnclosingClass returns the simple name of the nearest class-kind
// declaration, or "" when the node is outside any class.
func (u *CompilationUnit) EnclosingClass(p Path) string {
	if n := p.EnclosingType(); n != nil {
		return u.nameOf(n)
	}
	return ""
}

// EnclosingMethod returns the simple name of the nearest method declaration,
// or "" when the node is outside any method.
func (u *CompilationUnit) EnclosingMethod(p Path) string {
	if n := p.EnclosingMethod(); n != nil {
		return u.nameOf(n)
	}
	return ""
}

// Walk visits named nodes below root (root included) depth-first in source
// order, yielding each node whose kind is in kinds together with its ancestor
// path. An empty kinds list matches every node. Walking a subtree scopes the
// search to it; ancestors above root are not part of the path.
func Walk(root *sitter.Node, kinds ...string) iter.Seq2[Path, *sitter.Node] {
	return func(yield func(Path, *sitter.Node) bool) {
		if root == nil {
			return
		}
		var path Path
		var visit func(n *sitter.Node) bool
		visit = func(n *sitter.Node) bool {
			if len(kinds) == 0 || slices.Contains(kinds, n.Kind()) {
				if !yield(path[:len(path):len(path)], n) {
					return false
				}
			}
			path = append(path, n)
			defer func() { path = path[:len(path)-1] }()
			for i := range n.NamedChildCount() {
				child := n.NamedChild(i)
				if child == nil {
					continue
				}
				if !visit(child) {
					return false
				}
			}
			return true
		}
		visit(root)
	}
}

// Walk visits the whole compilation unit; see the package-level Walk.
func (u *CompilationUnit) Walk(kinds ...string) iter.Seq2[Path, *sitter.Node] {
	return Walk(u.Root(), kinds...)
}

// Nodes collects the nodes Walk would yield, dropping the paths.
func Nodes(root *sitter.Node, kinds ...string) []*sitter.Node {
	var result []*sitter.Node
	for _, n := range Walk(root, kinds...) {
		result = append(result, n)
	}
	return result
}

func isTypeDeclKind(kind string) bool {
	return slices.Contains(TypeDeclKinds, kind)
}

func findChildByKind(node *sitter.Node, kind string) *sitter.Node {
	for i := range node.ChildCount() {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}
