// Package mismoxml provides the two XML primitives the interchange
// engine is built on: a deterministic tree writer for export and a
// path-tracking event walker for validation and import. Both operate on
// full resolved element paths, never on substring matches against tag
// names.
package mismoxml

import (
	"bytes"
	"strings"
)

// Attr is an attribute emitted in the order given.
type Attr struct {
	Name  string
	Value string
}

// Node is one element in the output tree. Leaves carry Text; interior
// nodes carry Children. Serialization is a pure function of the tree:
// attribute and child order are exactly as constructed.
type Node struct {
	Name     string
	Attrs    []Attr
	Text     string
	Children []*Node
}

// Element builds an interior node.
func Element(name string, children ...*Node) *Node {
	return &Node{Name: name, Children: children}
}

// Leaf builds a text node.
func Leaf(name, text string) *Node {
	return &Node{Name: name, Text: text}
}

// Add appends children, skipping nils, and returns the node.
func (n *Node) Add(children ...*Node) *Node {
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
	return n
}

// Attr appends an attribute and returns the node.
func (n *Node) Attr(name, value string) *Node {
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
	return n
}

// Empty reports whether the node has neither text nor children.
func (n *Node) Empty() bool {
	return n == nil || (n.Text == "" && len(n.Children) == 0)
}

// Marshal serializes the tree with a UTF-8 declaration and two-space
// indentation. Output bytes are identical for identical trees.
func Marshal(root *Node) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	writeNode(&b, root, 0)
	return b.Bytes()
}

// MarshalFragment serializes a subtree without the XML declaration.
func MarshalFragment(root *Node) []byte {
	var b bytes.Buffer
	writeNode(&b, root, 0)
	return b.Bytes()
}

func writeNode(b *bytes.Buffer, n *Node, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	b.WriteByte('<')
	b.WriteString(n.Name)
	for _, a := range n.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(a.Value))
		b.WriteByte('"')
	}

	switch {
	case len(n.Children) > 0:
		b.WriteString(">\n")
		for _, c := range n.Children {
			writeNode(b, c, depth+1)
		}
		b.WriteString(indent)
		b.WriteString("</")
		b.WriteString(n.Name)
		b.WriteString(">\n")
	case n.Text != "":
		b.WriteByte('>')
		b.WriteString(escapeText(n.Text))
		b.WriteString("</")
		b.WriteString(n.Name)
		b.WriteString(">\n")
	default:
		b.WriteString("/>\n")
	}
}

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"\n", "&#10;",
	"\t", "&#9;",
)

func escapeText(s string) string { return textEscaper.Replace(s) }

func escapeAttr(s string) string { return attrEscaper.Replace(s) }
