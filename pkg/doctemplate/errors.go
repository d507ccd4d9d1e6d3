package doctemplate

import (
	"fmt"
	"strings"
)

// Pos is a location in template source. Line and Column are 1-based;
// Column counts characters, not bytes.
type Pos struct {
	Offset int
	Line   int
	Column int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// ParseError reports malformed template source. Path is the template or
// partial the error was found in.
type ParseError struct {
	Path    string
	Pos     Pos
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteByte(':')
	}
	b.WriteString(e.Pos.String())
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// PartialNotFoundError is returned by loaders that have no text for Path.
type PartialNotFoundError struct {
	Path string
	Err  error
}

func (e *PartialNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("partial not found: %s: %v", e.Path, e.Err)
	}
	return "partial not found: " + e.Path
}

func (e *PartialNotFoundError) Unwrap() error { return e.Err }
