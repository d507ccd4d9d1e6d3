package doctemplate

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

var reservedWords = map[string]bool{
	"if":     true,
	"else":   true,
	"elseif": true,
	"endif":  true,
	"for":    true,
	"sep":    true,
	"endfor": true,
	"it":     true,
}

// closer is a structural keyword (else, elseif, endif, sep, endfor) that
// ends the body currently being parsed.
type closer struct {
	keyword string
	v       Variable // condition of an elseif
	pos     Pos
	at      mark // parser state before the keyword
}

// mark is a saved parser position.
type mark struct {
	cur        cursor
	checked    int
	strippedAt int
	stripped   int
}

type parser struct {
	cur    cursor
	path   string
	loader Loader
	depth  int

	reflow    bool // whitespace becomes BreakingSpace
	nestedCol int  // column bound of the enclosing $^$ block, -1 outside
	inside    bool // parsing an if/for body

	// checked is the start of the last line whose nested-block indentation
	// was handled. strippedAt and stripped record how much indentation was
	// removed from the line starting at strippedAt.
	checked    int
	strippedAt int
	stripped   int

	// partials holds compiled partials by path and depth. Sub-parsers
	// share it, so a partial included several times compiles once per
	// depth.
	partials map[partialKey]Node
}

type partialKey struct {
	path  string
	depth int
}

func newParser(src, path string, loader Loader, depth int) *parser {
	return &parser{
		cur:        newCursor(src),
		path:       path,
		loader:     loader,
		depth:      depth,
		nestedCol:  -1,
		checked:    -1,
		strippedAt: -1,
		partials:   map[partialKey]Node{},
	}
}

func (p *parser) save() mark {
	return mark{cur: p.cur, checked: p.checked, strippedAt: p.strippedAt, stripped: p.stripped}
}

func (p *parser) restore(m mark) {
	p.cur = m.cur
	p.checked = m.checked
	p.strippedAt = m.strippedAt
	p.stripped = m.stripped
}

func (p *parser) errorf(pos Pos, format string, args ...any) *ParseError {
	return &ParseError{Path: p.path, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// strippedIndent returns how many columns of the current line were removed
// by an enclosing nested block.
func (p *parser) strippedIndent() int {
	if p.strippedAt == p.cur.lineStart {
		return p.stripped
	}
	return 0
}

// parseTemplate parses the whole input.
func (p *parser) parseTemplate() (Node, error) {
	nodes, cl, err := p.parseNodes()
	if err != nil {
		return nil, err
	}
	if cl != nil {
		return nil, p.errorf(cl.pos, "unexpected %s directive", cl.keyword)
	}
	return Concat(nodes...), nil
}

// parseNodes parses content until the end of input, a structural keyword,
// or a line that is indented less than the enclosing nested block.
func (p *parser) parseNodes() ([]Node, *closer, error) {
	var nodes []Node
	add := func(n Node) {
		if n == nil {
			return
		}
		if _, ok := n.(*BreakingSpaceNode); ok && len(nodes) > 0 {
			if _, prev := nodes[len(nodes)-1].(*BreakingSpaceNode); prev {
				return
			}
		}
		nodes = append(nodes, n)
	}
	for !p.cur.eof() {
		if p.atLineStart() && !p.handleIndent() {
			return nodes, nil, nil
		}
		switch {
		case p.cur.eof():
		case p.cur.newlineLen() > 0:
			add(p.parseNewline())
		case p.cur.peek() == '$':
			n, cl, err := p.parseDollar()
			if err != nil {
				return nil, nil, err
			}
			if cl != nil {
				return nodes, cl, nil
			}
			add(n)
		default:
			for _, n := range p.parseText() {
				add(n)
			}
		}
	}
	return nodes, nil, nil
}

// parseBody parses the body of an if or for directive.
func (p *parser) parseBody() (Node, *closer, error) {
	inside := p.inside
	p.inside = true
	defer func() { p.inside = inside }()
	nodes, cl, err := p.parseNodes()
	if err != nil {
		return nil, nil, err
	}
	return Concat(nodes...), cl, nil
}

func (p *parser) atLineStart() bool {
	return p.nestedCol >= 0 && p.cur.pos == p.cur.lineStart && p.checked != p.cur.lineStart
}

// handleIndent strips the nested-block indentation from the line at the
// cursor. It returns false when the line ends the nested block.
func (p *parser) handleIndent() bool {
	n, blank, next := lineIndent(p.cur.src, p.cur.pos)
	switch {
	case p.inside:
	case blank:
		if !p.continuesAfterBlank(next) {
			return false
		}
	case n < p.nestedCol:
		return false
	}
	strip := min(n, p.nestedCol)
	p.cur.advance(strip)
	p.checked = p.cur.lineStart
	p.strippedAt, p.stripped = p.cur.lineStart, strip
	return true
}

// continuesAfterBlank reports whether the first non-blank line at or after
// offset next is indented enough to stay in the nested block.
func (p *parser) continuesAfterBlank(next int) bool {
	src := p.cur.src
	for next >= 0 && next < len(src) {
		n, blank, after := lineIndent(src, next)
		if !blank {
			return n >= p.nestedCol
		}
		next = after
	}
	return false
}

func (p *parser) parseNewline() Node {
	nl := p.cur.src[p.cur.pos : p.cur.pos+p.cur.newlineLen()]
	p.cur.advance(len(nl))
	if !p.reflow {
		return &LiteralNode{Text: nl}
	}
	// Blank lines stay as paragraph breaks.
	para := ""
	for {
		_, blank, next := lineIndent(p.cur.src, p.cur.pos)
		if !blank || next <= p.cur.pos || p.cur.src[next-1] != '\n' {
			break
		}
		p.cur.advance(next - p.cur.pos)
		para += "\n"
	}
	if para == "" {
		return &BreakingSpaceNode{}
	}
	return &LiteralNode{Text: "\n" + para}
}

func (p *parser) parseText() []Node {
	start := p.cur.pos
	for !p.cur.eof() && p.cur.peek() != '$' && p.cur.newlineLen() == 0 {
		p.cur.next()
	}
	text := p.cur.src[start:p.cur.pos]
	if !p.reflow {
		return []Node{&LiteralNode{Text: text}}
	}
	var nodes []Node
	for text != "" {
		i := strings.IndexAny(text, " \t")
		if i < 0 {
			nodes = append(nodes, &LiteralNode{Text: text})
			break
		}
		if i > 0 {
			nodes = append(nodes, &LiteralNode{Text: text[:i]})
		}
		nodes = append(nodes, &BreakingSpaceNode{})
		text = strings.TrimLeft(text[i:], " \t")
	}
	return nodes
}

func (p *parser) parseDollar() (Node, *closer, error) {
	switch {
	case p.cur.hasPrefix("$$"):
		p.cur.advance(2)
		return &LiteralNode{Text: "$"}, nil, nil
	case p.cur.hasPrefix("$--"):
		p.parseComment()
		return nil, nil, nil
	}
	return p.parseDirective()
}

// parseComment drops the rest of the line. A comment in the first column
// takes its line terminator with it.
func (p *parser) parseComment() {
	first := p.cur.col == p.strippedIndent()
	for !p.cur.eof() && p.cur.newlineLen() == 0 {
		p.cur.next()
	}
	if first {
		p.cur.advance(p.cur.newlineLen())
	}
}

func (p *parser) beginsLine() bool {
	for i := p.cur.lineStart; i < p.cur.pos; i++ {
		if c := p.cur.src[i]; c != ' ' && c != '\t' {
			return false
		}
	}
	return true
}

func (p *parser) parseDirective() (Node, *closer, error) {
	at := p.save()
	start := p.cur.position()
	col := p.cur.displayCol() - p.strippedIndent()
	begins := p.beginsLine()

	p.cur.next()
	closing := byte('$')
	if p.cur.peek() == '{' {
		p.cur.next()
		closing = '}'
	}
	p.cur.skipHSpace()
	if p.cur.eof() {
		return nil, nil, p.errorf(start, "unterminated directive")
	}

	switch p.cur.peek() {
	case '~':
		p.cur.next()
		if err := p.closeDirective(closing, start); err != nil {
			return nil, nil, err
		}
		p.reflow = !p.reflow
		return nil, nil, nil
	case '^':
		p.cur.next()
		if err := p.closeDirective(closing, start); err != nil {
			return nil, nil, err
		}
		n, err := p.parseNested(at.cur.col, col)
		return n, nil, err
	}

	switch word := p.cur.peekIdent(); word {
	case "if", "for", "elseif":
		if p.cur.peekAt(len(word)) != '(' {
			break
		}
		p.cur.advance(len(word))
		v, err := p.parseParenVar()
		if err != nil {
			return nil, nil, err
		}
		if err := p.closeDirective(closing, start); err != nil {
			return nil, nil, err
		}
		switch word {
		case "if":
			n, err := p.parseConditional(v, start)
			return n, nil, err
		case "for":
			n, err := p.parseLoop(v, start)
			return n, nil, err
		}
		return nil, &closer{keyword: word, v: v, pos: start, at: at}, nil
	case "else", "endif", "sep", "endfor":
		ahead := p.cur
		ahead.advance(len(word))
		ahead.skipHSpace()
		if ahead.peek() == closing {
			ahead.next()
			p.cur = ahead
			return nil, &closer{keyword: word, pos: start, at: at}, nil
		}
	}

	n, err := p.parseInterpolation(closing, start)
	if err != nil {
		return nil, nil, err
	}
	if begins && p.cur.restOfLineBlank() {
		n = standalone(n, col)
	}
	return n, nil, nil
}

// parseInterpolation parses variables, the $var[sep]$ loop shorthand and
// bare or variable-scoped partials.
func (p *parser) parseInterpolation(closing byte, start Pos) (Node, error) {
	ahead := p.cur
	if name := ahead.scanPartialName(); name != "" && ahead.hasPrefix("()") {
		ahead.advance(2)
		p.cur = ahead
		// A bare partial has nothing to iterate, so its separator is unused.
		if _, _, err := p.parseSeparator(); err != nil {
			return nil, err
		}
		if err := p.closeDirective(closing, start); err != nil {
			return nil, err
		}
		return p.includePartial(name, start)
	}

	v, err := p.parseVariable()
	if err != nil {
		return nil, err
	}
	if p.cur.peek() == ':' {
		p.cur.next()
		pos := p.cur.position()
		name := p.cur.scanPartialName()
		if name == "" || !p.cur.match("()") {
			return nil, p.errorf(pos, "expected partial name followed by ()")
		}
		sep, _, err := p.parseSeparator()
		if err != nil {
			return nil, err
		}
		if err := p.closeDirective(closing, start); err != nil {
			return nil, err
		}
		body, err := p.includePartial(name, start)
		if err != nil {
			return nil, err
		}
		return &IterateNode{Var: v, Body: body, Sep: sep}, nil
	}

	sep, ok, err := p.parseSeparator()
	if err != nil {
		return nil, err
	}
	if err := p.closeDirective(closing, start); err != nil {
		return nil, err
	}
	if ok {
		it := &InterpolateNode{Var: Variable{Path: []string{"it"}}}
		return &IterateNode{Var: v, Body: it, Sep: sep}, nil
	}
	return &InterpolateNode{Var: v}, nil
}

func (p *parser) parseVariable() (Variable, error) {
	var v Variable
	for {
		pos := p.cur.position()
		id := p.cur.scanIdent()
		if id == "" {
			return Variable{}, p.errorf(pos, "expected variable name, found %s", p.describeNext())
		}
		if reservedWords[id] && (id != "it" || len(v.Path) > 0) {
			return Variable{}, p.errorf(pos, "reserved word %q cannot be used as a variable name", id)
		}
		v.Path = append(v.Path, id)
		if p.cur.peek() != '.' {
			break
		}
		p.cur.next()
	}
	for p.cur.peek() == '/' {
		p.cur.next()
		pos := p.cur.position()
		name := p.cur.scanIdent()
		if name == "" {
			return Variable{}, p.errorf(pos, "expected filter name, found %s", p.describeNext())
		}
		f, ok := LookupFilter(name)
		if !ok {
			return Variable{}, p.errorf(pos, "unknown filter %q", name)
		}
		v.Filters = append(v.Filters, f)
	}
	return v, nil
}

func (p *parser) parseParenVar() (Variable, error) {
	if !p.cur.match("(") {
		return Variable{}, p.errorf(p.cur.position(), "expected (")
	}
	p.cur.skipHSpace()
	v, err := p.parseVariable()
	if err != nil {
		return Variable{}, err
	}
	p.cur.skipHSpace()
	if !p.cur.match(")") {
		return Variable{}, p.errorf(p.cur.position(), "expected ), found %s", p.describeNext())
	}
	return v, nil
}

// parseSeparator parses an optional [text] suffix.
func (p *parser) parseSeparator() (Node, bool, error) {
	if p.cur.peek() != '[' {
		return Empty, false, nil
	}
	pos := p.cur.position()
	p.cur.next()
	start := p.cur.pos
	for !p.cur.eof() && p.cur.peek() != ']' {
		p.cur.next()
	}
	if p.cur.eof() {
		return nil, false, p.errorf(pos, "unterminated separator, expected ]")
	}
	text := p.cur.src[start:p.cur.pos]
	p.cur.next()
	if text == "" {
		return Empty, true, nil
	}
	return &LiteralNode{Text: text}, true, nil
}

func (p *parser) closeDirective(closing byte, start Pos) error {
	p.cur.skipHSpace()
	if p.cur.eof() {
		return p.errorf(start, "unterminated directive")
	}
	if p.cur.peek() != closing {
		return p.errorf(p.cur.position(), "expected %q to close directive, found %s", closing, p.describeNext())
	}
	p.cur.next()
	return nil
}

func (p *parser) describeNext() string {
	if p.cur.eof() {
		return "end of input"
	}
	r, _ := utf8.DecodeRuneInString(p.cur.src[p.cur.pos:])
	return fmt.Sprintf("%q", r)
}

// skipEndline consumes trailing spaces and one line terminator if nothing
// else follows on the line.
func (p *parser) skipEndline() bool {
	ahead := p.cur
	ahead.skipHSpace()
	n := ahead.newlineLen()
	if n == 0 {
		return false
	}
	ahead.advance(n)
	p.cur = ahead
	return true
}

func (p *parser) parseConditional(v Variable, start Pos) (Node, error) {
	multiline := p.skipEndline()
	return p.parseBranches(v, multiline, start)
}

func (p *parser) parseBranches(v Variable, multiline bool, start Pos) (Node, error) {
	then, cl, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if cl == nil {
		return nil, p.errorf(start, "unterminated if directive, expected endif")
	}
	if multiline {
		p.skipEndline()
	}
	switch cl.keyword {
	case "endif":
		return &ConditionalNode{Var: v, Then: then, Else: Empty}, nil
	case "elseif":
		els, err := p.parseBranches(cl.v, multiline, start)
		if err != nil {
			return nil, err
		}
		return &ConditionalNode{Var: v, Then: then, Else: els}, nil
	case "else":
		els, end, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		if end == nil {
			return nil, p.errorf(start, "unterminated if directive, expected endif")
		}
		if end.keyword != "endif" {
			return nil, p.errorf(end.pos, "unexpected %s directive, expected endif", end.keyword)
		}
		if multiline {
			p.skipEndline()
		}
		return &ConditionalNode{Var: v, Then: then, Else: els}, nil
	}
	return nil, p.errorf(cl.pos, "unexpected %s directive inside if", cl.keyword)
}

func (p *parser) parseLoop(v Variable, start Pos) (Node, error) {
	multiline := p.skipEndline()
	body, cl, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if cl == nil {
		return nil, p.errorf(start, "unterminated for directive, expected endfor")
	}
	if multiline {
		p.skipEndline()
	}
	sep := Empty
	if cl.keyword == "sep" {
		if sep, cl, err = p.parseBody(); err != nil {
			return nil, err
		}
		if cl == nil {
			return nil, p.errorf(start, "unterminated for directive, expected endfor")
		}
		if multiline {
			p.skipEndline()
		}
	}
	if cl.keyword != "endfor" {
		return nil, p.errorf(cl.pos, "unexpected %s directive inside for", cl.keyword)
	}
	return &IterateNode{Var: v, Body: rescope(v.Path, body), Sep: rescope(v.Path, sep)}, nil
}

// parseNested parses a $^$ block whose lines must be indented to at least
// absCol. col is the column the block's output is re-indented to.
func (p *parser) parseNested(absCol, col int) (Node, error) {
	nestedCol, inside := p.nestedCol, p.inside
	p.nestedCol, p.inside = absCol, false
	defer func() { p.nestedCol, p.inside = nestedCol, inside }()

	nodes, cl, err := p.parseNodes()
	if err != nil {
		return nil, err
	}
	if cl != nil {
		// The keyword belongs to an enclosing directive.
		p.restore(cl.at)
	}
	return &NestedNode{Column: col, Body: Concat(nodes...)}, nil
}

// standalone adjusts a directive that is alone on its line so multi-line
// output stays aligned under the directive's column.
func standalone(n Node, col int) Node {
	switch t := n.(type) {
	case *InterpolateNode:
		return &InterpolateNode{Indent: Indented(col), Var: t.Var}
	case *IterateNode:
		return &IterateNode{Var: t.Var, Body: standalone(t.Body, col), Sep: t.Sep}
	case *PartialNode:
		return &NestedNode{Column: col, Body: t}
	}
	return n
}

// rescope rewrites variables under prefix to be relative to the loop
// element "it". Partial bodies keep their own scope.
func rescope(prefix []string, n Node) Node {
	switch t := n.(type) {
	case *InterpolateNode:
		return &InterpolateNode{Indent: t.Indent, Var: t.Var.rescope(prefix)}
	case *ConditionalNode:
		return &ConditionalNode{Var: t.Var.rescope(prefix), Then: rescope(prefix, t.Then), Else: rescope(prefix, t.Else)}
	case *IterateNode:
		return &IterateNode{Var: t.Var.rescope(prefix), Body: rescope(prefix, t.Body), Sep: rescope(prefix, t.Sep)}
	case *NestedNode:
		return &NestedNode{Column: t.Column, Body: rescope(prefix, t.Body)}
	case *ConcatNode:
		return &ConcatNode{Left: rescope(prefix, t.Left), Right: rescope(prefix, t.Right)}
	}
	return n
}
