package doctemplate

import (
	"strings"
	"unicode"
)

// Segment is a piece of rendered output. Break segments mark a space a
// line wrapper may replace with a line break; their Text is " ".
type Segment struct {
	Text  string
	Break bool
}

// output collects rendered segments. Text written since the last break is
// buffered and becomes one segment when a break arrives or the output is
// read.
type output struct {
	segs []Segment
	buf  strings.Builder
}

func (o *output) text(s string) {
	o.buf.WriteString(s)
}

func (o *output) brk() {
	o.flush()
	o.segs = append(o.segs, Segment{Text: " ", Break: true})
}

func (o *output) flush() {
	if o.buf.Len() == 0 {
		return
	}
	o.segs = append(o.segs, Segment{Text: o.buf.String()})
	o.buf.Reset()
}

func (o *output) append(segs []Segment) {
	for _, s := range segs {
		if s.Break {
			o.brk()
		} else {
			o.text(s.Text)
		}
	}
}

// segments returns the collected segments. Adjacent text is merged.
func (o *output) segments() []Segment {
	o.flush()
	return o.segs
}

func (o *output) String() string {
	if len(o.segs) == 0 {
		return o.buf.String()
	}
	var b strings.Builder
	for _, s := range o.segments() {
		b.WriteString(s.Text)
	}
	return b.String()
}

// scope is the evaluation environment: the root context plus the current
// loop element bound to "it".
type scope struct {
	ctx   Value
	it    Value
	hasIt bool
}

func (s scope) with(it Value) scope {
	return scope{ctx: s.ctx, it: it, hasIt: true}
}

// lookup resolves a variable path. A nil result means absent.
func (s scope) lookup(path []string) Value {
	cur := s.ctx
	if path[0] == "it" && s.hasIt {
		cur, path = s.it, path[1:]
	}
	for _, key := range path {
		h, ok := cur.(LookupHook)
		if !ok {
			return nil
		}
		if cur, ok = h.OnLookup(key); !ok {
			return nil
		}
		if cur == nil {
			cur = NullValue{}
		}
	}
	return cur
}

func (s scope) eval(v Variable) Value {
	return applyFilters(s.lookup(v.Path), v.Filters)
}

// textOf renders a resolved value as interpolation text.
func textOf(v Value) string {
	switch t := v.(type) {
	case nil, NullValue:
		return ""
	case BoolValue:
		if t {
			return "true"
		}
		return ""
	case StringValue:
		return strings.TrimRightFunc(string(t), unicode.IsSpace)
	case ListValue:
		if len(t) == 0 {
			return ""
		}
		return textOf(t[0])
	case DictValue:
		return "true"
	}
	return strings.TrimRightFunc(v.String(), unicode.IsSpace)
}

func truthy(v Value) bool {
	return v != nil && v.Truth()
}

func render(n Node, s scope, out *output) {
	for {
		c, ok := n.(*ConcatNode)
		if !ok {
			break
		}
		render(c.Left, s, out)
		n = c.Right
	}
	switch t := n.(type) {
	case *LiteralNode:
		out.text(t.Text)
	case *BreakingSpaceNode:
		out.brk()
	case *InterpolateNode:
		text := textOf(s.eval(t.Var))
		if t.Indent.Indented {
			text = indentText(text, t.Indent.Column)
		}
		out.text(text)
	case *ConditionalNode:
		if truthy(s.eval(t.Var)) {
			render(t.Then, s, out)
		} else {
			render(t.Else, s, out)
		}
	case *IterateNode:
		v := s.eval(t.Var)
		var items ListValue
		switch l := v.(type) {
		case ListValue:
			items = l
		default:
			if truthy(v) {
				items = ListValue{v}
			}
		}
		for i, item := range items {
			if item == nil {
				item = NullValue{}
			}
			if i > 0 {
				render(t.Sep, s.with(items[i-1]), out)
			}
			render(t.Body, s.with(item), out)
		}
	case *PartialNode:
		render(t.Body, s, out)
	case *NestedNode:
		var sub output
		render(t.Body, s, &sub)
		out.append(indentSegments(sub.segments(), t.Column))
	}
}

// indentSegments pads every line after the first with col spaces. Blank
// lines and a trailing line break get no padding.
func indentSegments(segs []Segment, col int) []Segment {
	if col <= 0 {
		return segs
	}
	pad := strings.Repeat(" ", col)
	out := make([]Segment, 0, len(segs))
	pending := false
	for _, s := range segs {
		if s.Break {
			if pending {
				out = append(out, Segment{Text: pad})
				pending = false
			}
			out = append(out, s)
			continue
		}
		var b strings.Builder
		for i := 0; i < len(s.Text); i++ {
			c := s.Text[i]
			if pending && c != '\n' && c != '\r' {
				b.WriteString(pad)
			}
			if c != '\r' {
				pending = c == '\n'
			}
			b.WriteByte(c)
		}
		out = append(out, Segment{Text: b.String()})
	}
	return out
}

func indentText(text string, col int) string {
	if col <= 0 || !strings.Contains(text, "\n") {
		return text
	}
	segs := indentSegments([]Segment{{Text: text}}, col)
	return segs[0].Text
}
