package javaast

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

var literalKinds = map[string]bool{
	"decimal_integer_literal":        true,
	"hex_integer_literal":            true,
	"octal_integer_literal":          true,
	"binary_integer_literal":         true,
	"decimal_floating_point_literal": true,
	"hex_floating_point_literal":     true,
	"character_literal":              true,
	"null_literal":                   true,
	"true":                           true,
	"false":                          true,
	KindStringLiteral:                true,
}

// IsLiteral reports whether n is a constant literal expression.
func IsLiteral(n *sitter.Node) bool {
	return n != nil && literalKinds[n.Kind()]
}

// RenderArgument renders an argument expression: the literal value when the
// argument is a constant (strings without their quotes), the source text
// otherwise.
func (u *CompilationUnit) RenderArgument(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	if n.Kind() == KindStringLiteral {
		return u.StringValue(n)
	}
	return u.Text(n)
}

// StringValue returns the content of a string literal or text block without
// its delimiters. Escape sequences are kept as written.
func (u *CompilationUnit) StringValue(n *sitter.Node) string {
	s := u.Text(n)
	if strings.HasPrefix(s, `"""`) && strings.HasSuffix(s, `"""`) && len(s) >= 6 {
		body := s[3 : len(s)-3]
		// A text block starts after the line terminator following the opening delimiter.
		if i := strings.IndexByte(body, '\n'); i >= 0 && strings.TrimSpace(body[:i]) == "" {
			body = body[i+1:]
		}
		return body
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// SimpleTypeName reduces a type node to its simple base name: package
// qualifiers, type arguments and array dimensions are dropped, so
// java.util.List<Order>[] becomes "List".
func (u *CompilationUnit) SimpleTypeName(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind() {
	case "type_identifier", "integral_type", "floating_point_type", "boolean_type", "void_type", "identifier":
		return u.Text(n)
	case "scoped_type_identifier":
		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			if c := n.NamedChild(uint(i)); c != nil && c.Kind() == "type_identifier" {
				return u.Text(c)
			}
		}
	case "generic_type":
		return u.SimpleTypeName(n.NamedChild(0))
	case "array_type":
		return u.SimpleTypeName(n.ChildByFieldName("element"))
	case "annotated_type":
		return u.SimpleTypeName(n.NamedChild(n.NamedChildCount() - 1))
	}
	return simplifyTypeText(u.Text(n))
}

// TypeNames returns the simple name of a type followed by the simple names
// of every type argument it carries, recursively. Wildcards contribute their
// bound.
func (u *CompilationUnit) TypeNames(n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	var out []string
	if base := u.SimpleTypeName(n); base != "" && n.Kind() != "wildcard" {
		out = append(out, base)
	}
	for _, args := range Walk(n, "type_arguments") {
		for i := range args.NamedChildCount() {
			arg := args.NamedChild(i)
			if arg == nil {
				continue
			}
			if arg.Kind() == "wildcard" {
				for j := range arg.NamedChildCount() {
					if b := arg.NamedChild(j); b != nil && b.Kind() != "super" && b.Kind() != "annotation" && b.Kind() != "marker_annotation" {
						out = append(out, u.SimpleTypeName(b))
					}
				}
				continue
			}
			out = append(out, u.SimpleTypeName(arg))
		}
	}
	return out
}

func simplifyTypeText(s string) string {
	if i := strings.IndexByte(s, '<'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(strings.TrimRight(s, "[] "))
	return lastSegment(s)
}
