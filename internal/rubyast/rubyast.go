// Package rubyast wraps the tree-sitter Ruby parser and provides node
// helpers shared by the visitor and the metric-definition scanner.
package rubyast

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"
)

// File is one successfully parsed source file.
type File struct {
	Path   string
	Source []byte
	tree   *sitter.Tree
}

// Parse parses source and returns the file, or nil on a syntax error.
// A parse failure is not an error condition: the file simply contributes
// nothing and the caller moves on.
func Parse(source []byte, path string) *File {
	p := sitter.NewParser()
	p.SetLanguage(ruby.GetLanguage())

	tree, err := p.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil
	}
	root := tree.RootNode()
	if root == nil || root.HasError() {
		tree.Close()
		return nil
	}
	return &File{Path: path, Source: source, tree: tree}
}

// Root returns the root node of the parse tree.
func (f *File) Root() *sitter.Node {
	return f.tree.RootNode()
}

// Close releases the underlying tree.
func (f *File) Close() {
	f.tree.Close()
}

// Text returns the source text of a node.
func (f *File) Text(n *sitter.Node) string {
	return NodeText(n, f.Source)
}

// Line returns the 1-based line number of a node.
func Line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(n *sitter.Node, source []byte) string {
	return string(source[n.StartByte():n.EndByte()])
}

// IsConstantPath reports whether n is a constant or a scope_resolution
// chain of constants (Foo, Foo::Bar).
func IsConstantPath(n *sitter.Node) bool {
	t := n.Type()
	return t == "constant" || t == "scope_resolution"
}

// IsInterpolated reports whether n is a string literal containing at least
// one interpolation fragment.
func IsInterpolated(n *sitter.Node) bool {
	if n.Type() != "string" {
		return false
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == "interpolation" {
			return true
		}
	}
	return false
}

// StringLiteral returns the content of a plain (non-interpolated) string
// literal. ok is false for interpolated strings and non-string nodes.
func StringLiteral(n *sitter.Node, source []byte) (string, bool) {
	if n.Type() != "string" || IsInterpolated(n) {
		return "", false
	}
	return LiteralFragments(n, source), true
}

// LiteralFragments concatenates the literal (non-interpolated) pieces of a
// string node in source order. Interpolated fragments are dropped.
func LiteralFragments(n *sitter.Node, source []byte) string {
	var out []byte
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "string_content", "escape_sequence":
			out = append(out, source[child.StartByte():child.EndByte()]...)
		}
	}
	return string(out)
}

// SymbolLiteral returns the name of a symbol literal (:foo or %s-delimited).
// ok is false for non-symbol nodes.
func SymbolLiteral(n *sitter.Node, source []byte) (string, bool) {
	switch n.Type() {
	case "simple_symbol":
		text := NodeText(n, source)
		if len(text) > 1 && text[0] == ':' {
			return text[1:], true
		}
		return text, true
	case "delimited_symbol":
		return LiteralFragments(n, source), true
	}
	return "", false
}

// Arguments returns the named argument nodes of a call, or nil when the
// call carries no argument list.
func Arguments(call *sitter.Node) []*sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(args.NamedChildCount()); i++ {
		out = append(out, args.NamedChild(i))
	}
	return out
}
