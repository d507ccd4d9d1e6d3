package doctemplate

import "strings"

// Node is any node of a compiled template.
type Node interface {
	node()
}

// EmptyNode renders nothing. It is the identity of Concat.
type EmptyNode struct{}

func (*EmptyNode) node() {}

// LiteralNode is verbatim output text.
type LiteralNode struct {
	Text string
}

func (*LiteralNode) node() {}

// BreakingSpaceNode is a space a line wrapper may turn into a line break.
type BreakingSpaceNode struct{}

func (*BreakingSpaceNode) node() {}

// Indentation controls how continuation lines of an interpolated value are
// indented. The zero value is Unindented.
type Indentation struct {
	Indented bool
	Column   int
}

// Unindented renders values inline.
var Unindented = Indentation{}

// Indented pads every continuation line of a value with col spaces.
func Indented(col int) Indentation {
	return Indentation{Indented: true, Column: col}
}

// InterpolateNode emits a variable's value: $var$
type InterpolateNode struct {
	Indent Indentation
	Var    Variable
}

func (*InterpolateNode) node() {}

// ConditionalNode branches on the truthiness of Var: $if(var)$...$else$...$endif$
// An elseif chain is a ConditionalNode nested in Else.
type ConditionalNode struct {
	Var  Variable
	Then Node
	Else Node
}

func (*ConditionalNode) node() {}

// IterateNode renders Body once per element of Var, joined by Sep:
// $for(var)$...$sep$...$endfor$
type IterateNode struct {
	Var  Variable
	Body Node
	Sep  Node
}

func (*IterateNode) node() {}

// PartialNode renders an included template against the enclosing context.
type PartialNode struct {
	Path string
	Body Node
}

func (*PartialNode) node() {}

// NestedNode re-indents every continuation line of Body to Column: $^$
type NestedNode struct {
	Column int
	Body   Node
}

func (*NestedNode) node() {}

// ConcatNode renders Left followed by Right. Nodes built by Combine are
// right-nested and never hold an EmptyNode or two adjacent literals.
type ConcatNode struct {
	Left  Node
	Right Node
}

func (*ConcatNode) node() {}

// Empty is the shared identity node.
var Empty Node = &EmptyNode{}

// Variable is a dotted lookup path plus the filters applied to the result.
type Variable struct {
	Path    []string
	Filters []Filter
}

func (v Variable) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(v.Path, "."))
	for _, f := range v.Filters {
		b.WriteByte('/')
		b.WriteString(f.String())
	}
	return b.String()
}

// hasPrefix reports whether prefix is a leading subsequence of v's path.
func (v Variable) hasPrefix(prefix []string) bool {
	if len(prefix) > len(v.Path) {
		return false
	}
	for i, seg := range prefix {
		if v.Path[i] != seg {
			return false
		}
	}
	return true
}

func (v Variable) rescope(prefix []string) Variable {
	if !v.hasPrefix(prefix) {
		return v
	}
	path := append([]string{"it"}, v.Path[len(prefix):]...)
	return Variable{Path: path, Filters: v.Filters}
}

func isEmpty(n Node) bool {
	switch t := n.(type) {
	case nil, *EmptyNode:
		return true
	case *LiteralNode:
		return t.Text == ""
	}
	return false
}

// Combine composes a and b in sequence. It is associative with Empty as
// identity: results are kept in a canonical right-nested form with adjacent
// literals merged, so equal sequences build equal trees.
func Combine(a, b Node) Node {
	switch {
	case isEmpty(a) && isEmpty(b):
		return Empty
	case isEmpty(a):
		return b
	case isEmpty(b):
		return a
	}
	if c, ok := a.(*ConcatNode); ok {
		return Combine(c.Left, Combine(c.Right, b))
	}
	if la, ok := a.(*LiteralNode); ok {
		switch tb := b.(type) {
		case *LiteralNode:
			return &LiteralNode{Text: la.Text + tb.Text}
		case *ConcatNode:
			if lb, ok := tb.Left.(*LiteralNode); ok {
				return &ConcatNode{Left: &LiteralNode{Text: la.Text + lb.Text}, Right: tb.Right}
			}
		}
	}
	return &ConcatNode{Left: a, Right: b}
}

// Concat folds nodes in order with Combine.
func Concat(nodes ...Node) Node {
	out := Empty
	for i := len(nodes) - 1; i >= 0; i-- {
		out = Combine(nodes[i], out)
	}
	return out
}
