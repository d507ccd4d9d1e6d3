package doctemplate

import (
	"bytes"
	"fmt"
)

type Visitor interface {
	Visit(n Node) error
}

// VisitorFunc adapts a function to the Visitor interface.
type VisitorFunc func(n Node) error

func (f VisitorFunc) Visit(n Node) error { return f(n) }

// Walk calls v for n and then for each of its descendants in source order.
// Partial bodies are walked as well; a compiled partial shared by several
// includes is walked at its first include only.
func Walk(v Visitor, n Node) error {
	return walk(v, n, map[*PartialNode]bool{})
}

func walk(v Visitor, n Node, seen map[*PartialNode]bool) error {
	if err := v.Visit(n); err != nil {
		return err
	}
	var children []Node
	switch t := n.(type) {
	case *ConditionalNode:
		children = []Node{t.Then, t.Else}
	case *IterateNode:
		children = []Node{t.Body, t.Sep}
	case *PartialNode:
		if seen[t] {
			return nil
		}
		seen[t] = true
		children = []Node{t.Body}
	case *NestedNode:
		children = []Node{t.Body}
	case *ConcatNode:
		children = []Node{t.Left, t.Right}
	}
	for _, c := range children {
		if c == nil {
			continue
		}
		if err := walk(v, c, seen); err != nil {
			return err
		}
	}
	return nil
}

// Partials returns the resolved paths of every partial t includes,
// directly or transitively, in first-seen order.
func (t *Template) Partials() []string {
	var paths []string
	seen := map[string]bool{}
	_ = Walk(VisitorFunc(func(n Node) error {
		if p, ok := n.(*PartialNode); ok && !seen[p.Path] {
			seen[p.Path] = true
			paths = append(paths, p.Path)
		}
		return nil
	}), t.Root)
	return paths
}

// Pretty returns a line-oriented string representation of the AST.
// Concatenations are flattened. A shared partial prints its body once.
func Pretty(n Node) string {
	pp := printer{seen: map[*PartialNode]bool{}}
	pp.node(0, n)
	return pp.buf.String()
}

type printer struct {
	buf  bytes.Buffer
	seen map[*PartialNode]bool
}

func (pp *printer) node(indent int, n Node) {
	buf := &pp.buf
	ind := func() {
		for i := 0; i < indent; i++ {
			buf.WriteByte(' ')
		}
	}
	switch t := n.(type) {
	case nil, *EmptyNode:
		ind()
		buf.WriteString("Empty\n")
	case *LiteralNode:
		ind()
		fmt.Fprintf(buf, "Literal(%q)\n", t.Text)
	case *BreakingSpaceNode:
		ind()
		buf.WriteString("BreakingSpace\n")
	case *InterpolateNode:
		ind()
		if t.Indent.Indented {
			fmt.Fprintf(buf, "Interpolate(%s, indent=%d)\n", t.Var, t.Indent.Column)
		} else {
			fmt.Fprintf(buf, "Interpolate(%s)\n", t.Var)
		}
	case *ConditionalNode:
		ind()
		fmt.Fprintf(buf, "If(%s)\n", t.Var)
		pp.node(indent+2, t.Then)
		if !isEmpty(t.Else) {
			ind()
			buf.WriteString("Else\n")
			pp.node(indent+2, t.Else)
		}
	case *IterateNode:
		ind()
		fmt.Fprintf(buf, "For(%s)\n", t.Var)
		pp.node(indent+2, t.Body)
		if !isEmpty(t.Sep) {
			ind()
			buf.WriteString("Sep\n")
			pp.node(indent+2, t.Sep)
		}
	case *PartialNode:
		ind()
		if pp.seen[t] {
			fmt.Fprintf(buf, "Partial(%q) (shared)\n", t.Path)
			return
		}
		pp.seen[t] = true
		fmt.Fprintf(buf, "Partial(%q)\n", t.Path)
		pp.node(indent+2, t.Body)
	case *NestedNode:
		ind()
		fmt.Fprintf(buf, "Nested(%d)\n", t.Column)
		pp.node(indent+2, t.Body)
	case *ConcatNode:
		ind()
		buf.WriteString("Concat\n")
		for {
			pp.node(indent+2, t.Left)
			next, ok := t.Right.(*ConcatNode)
			if !ok {
				pp.node(indent+2, t.Right)
				break
			}
			t = next
		}
	}
}
