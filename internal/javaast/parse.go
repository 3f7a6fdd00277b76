// Package javaast wraps the tree-sitter Java grammar and exposes typed views
// over the syntax tree used by every analyzer in javalens.
package javaast

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
)

// ParseError reports source text that is not syntactically valid Java.
type ParseError struct {
	Line    int    // 1-based line of the first syntax error
	Snippet string // offending source text, truncated
}

func (e *ParseError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("syntax error at line %d", e.Line)
	}
	return fmt.Sprintf("syntax error at line %d near %q", e.Line, e.Snippet)
}

// ValidationError reports malformed or empty input handed to an entry point.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CompilationUnit is one parsed Java source text. It owns the underlying
// tree-sitter tree; callers must Close it when done.
type CompilationUnit struct {
	Source []byte
	tree   *sitter.Tree
}

// Root returns the program node.
func (u *CompilationUnit) Root() *sitter.Node {
	return u.tree.RootNode()
}

// Close releases the syntax tree.
func (u *CompilationUnit) Close() {
	if u.tree != nil {
		u.tree.Close()
		u.tree = nil
	}
}

// Parse parses Java source text. Empty input yields a ValidationError and
// input containing syntax errors yields a ParseError; no partial tree is
// returned in either case.
func Parse(src []byte) (*CompilationUnit, error) {
	if strings.TrimSpace(string(src)) == "" {
		return nil, &ValidationError{Field: "source", Reason: "empty source text"}
	}

	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(sitter.NewLanguage(java.Language())); err != nil {
		return nil, fmt.Errorf("loading java grammar: %w", err)
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, &ParseError{Line: 1}
	}

	root := tree.RootNode()
	if root.HasError() {
		perr := &ParseError{Line: 1}
		if bad := firstErrorNode(root); bad != nil {
			perr.Line = int(bad.StartPosition().Row) + 1
			perr.Snippet = truncate(strings.TrimSpace(bad.Utf8Text(src)), 40)
		}
		tree.Close()
		return nil, perr
	}

	return &CompilationUnit{Source: src, tree: tree}, nil
}

// ParseString is Parse for string input.
func ParseString(src string) (*CompilationUnit, error) {
	return Parse([]byte(src))
}

func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := range n.ChildCount() {
		child := n.Child(i)
		if child == nil || !child.HasError() && !child.IsMissing() {
			continue
		}
		if bad := firstErrorNode(child); bad != nil {
			return bad
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
