// Package xmlcodec backs the XML-flavored protocols: an ordered element
// writer for generated serializers and a lightweight node-tree parser for
// generated deserializers. Namespace handling is limited to what the wire
// formats actually use: a default xmlns attribute on the root element.
package xmlcodec

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Attr is one attribute of an element.
type Attr struct {
	Name  string
	Value string
}

// Writer emits elements in call order.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty writer.
func NewWriter() *Writer { return &Writer{} }

// Start opens an element with optional attributes.
func (w *Writer) Start(name string, attrs ...Attr) {
	w.buf.WriteByte('<')
	w.buf.WriteString(name)
	for _, a := range attrs {
		w.buf.WriteByte(' ')
		w.buf.WriteString(a.Name)
		w.buf.WriteString(`="`)
		_ = xml.EscapeText(&w.buf, []byte(a.Value))
		w.buf.WriteByte('"')
	}
	w.buf.WriteByte('>')
}

// End closes an element.
func (w *Writer) End(name string) {
	w.buf.WriteString("</")
	w.buf.WriteString(name)
	w.buf.WriteByte('>')
}

// Text writes escaped character data.
func (w *Writer) Text(s string) {
	_ = xml.EscapeText(&w.buf, []byte(s))
}

// Element writes <name>text</name>.
func (w *Writer) Element(name, text string) {
	w.Start(name)
	w.Text(text)
	w.End(name)
}

// Bytes returns the document so far.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Node is one parsed element.
type Node struct {
	Name     string
	Attrs    map[string]string
	Children []*Node
	Text     string
}

// Child returns the first child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildAll returns every child with the given name in document order.
func (n *Node) ChildAll(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// ChildText returns the text of the first child with the given name.
func (n *Node) ChildText(name string) (string, bool) {
	if c := n.Child(name); c != nil {
		return c.Text, true
	}
	return "", false
}

// Parse builds a node tree from an XML document.
func Parse(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmlcodec: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local, Attrs: map[string]string{}}
			for _, a := range t.Attr {
				n.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("xmlcodec: multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("xmlcodec: unbalanced end element %q", t.Name.Local)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += strings.TrimSpace(string(t))
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("xmlcodec: empty document")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("xmlcodec: unterminated element %q", stack[len(stack)-1].Name)
	}
	return root, nil
}
