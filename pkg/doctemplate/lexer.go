package doctemplate

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// cursor walks template source keeping line and column bookkeeping current.
// It is a plain value so the parser can save and restore it.
type cursor struct {
	src       string
	pos       int
	line      int // 1-based
	col       int // 0-based, in characters
	lineStart int // byte offset of the current line
}

// tabWidth is the distance between tab stops when measuring how far a
// directive sits from the left margin.
const tabWidth = 8

// displayCol is the current column as rendered, with tabs advancing to the
// next tab stop.
func (c *cursor) displayCol() int {
	col := 0
	for _, r := range c.src[c.lineStart:c.pos] {
		if r == '\t' {
			col += tabWidth - col%tabWidth
		} else {
			col++
		}
	}
	return col
}

func newCursor(src string) cursor {
	return cursor{src: src, line: 1}
}

func (c *cursor) eof() bool { return c.pos >= len(c.src) }

func (c *cursor) peek() byte {
	if c.pos >= len(c.src) {
		return 0
	}
	return c.src[c.pos]
}

func (c *cursor) peekAt(n int) byte {
	if c.pos+n >= len(c.src) {
		return 0
	}
	return c.src[c.pos+n]
}

func (c *cursor) hasPrefix(s string) bool {
	return strings.HasPrefix(c.src[c.pos:], s)
}

func (c *cursor) next() rune {
	if c.pos >= len(c.src) {
		return 0
	}
	r, size := utf8.DecodeRuneInString(c.src[c.pos:])
	c.pos += size
	if r == '\n' {
		c.line++
		c.col = 0
		c.lineStart = c.pos
	} else {
		c.col++
	}
	return r
}

func (c *cursor) advance(n int) {
	end := c.pos + n
	for c.pos < end && c.pos < len(c.src) {
		c.next()
	}
}

func (c *cursor) match(s string) bool {
	if !c.hasPrefix(s) {
		return false
	}
	c.advance(len(s))
	return true
}

// skipHSpace consumes spaces and tabs and returns how many it consumed.
func (c *cursor) skipHSpace() int {
	n := 0
	for c.peek() == ' ' || c.peek() == '\t' {
		c.next()
		n++
	}
	return n
}

// newlineLen returns the length of the line terminator at the cursor, or 0.
func (c *cursor) newlineLen() int {
	switch {
	case c.peek() == '\n':
		return 1
	case c.peek() == '\r' && c.peekAt(1) == '\n':
		return 2
	}
	return 0
}

func (c *cursor) position() Pos {
	return Pos{Offset: c.pos, Line: c.line, Column: c.col + 1}
}

// restOfLineBlank reports whether only spaces and tabs separate the cursor
// from the next line terminator or the end of input.
func (c *cursor) restOfLineBlank() bool {
	for i := c.pos; i < len(c.src); i++ {
		switch c.src[i] {
		case ' ', '\t':
		case '\n':
			return true
		case '\r':
			return i+1 < len(c.src) && c.src[i+1] == '\n'
		default:
			return false
		}
	}
	return true
}

// scanIdent consumes an identifier: a letter followed by letters, digits,
// underscores and hyphens.
func (c *cursor) scanIdent() string {
	start := c.pos
	r, size := utf8.DecodeRuneInString(c.src[c.pos:])
	if size == 0 || !unicode.IsLetter(r) {
		return ""
	}
	c.next()
	for !c.eof() {
		r, _ = utf8.DecodeRuneInString(c.src[c.pos:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			break
		}
		c.next()
	}
	return c.src[start:c.pos]
}

// peekIdent returns the identifier at the cursor without consuming it.
func (c *cursor) peekIdent() string {
	cp := *c
	return cp.scanIdent()
}

func isPartialNameByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	return strings.IndexByte("_-./\\", b) >= 0
}

// scanPartialName consumes the characters allowed in a partial name.
func (c *cursor) scanPartialName() string {
	start := c.pos
	for !c.eof() && isPartialNameByte(c.peek()) {
		c.next()
	}
	return c.src[start:c.pos]
}

// lineIndent counts the leading spaces of the line starting at offset start
// and reports whether the line holds nothing but whitespace. next is the
// offset of the following line, or len(src) when there is none.
func lineIndent(src string, start int) (n int, blank bool, next int) {
	i := start
	for i < len(src) && src[i] == ' ' {
		i++
	}
	n = i - start
	for i < len(src) && (src[i] == ' ' || src[i] == '\t' || src[i] == '\r') {
		i++
	}
	if i >= len(src) {
		return n, true, len(src)
	}
	if src[i] != '\n' {
		return n, false, -1
	}
	return n, true, i + 1
}
