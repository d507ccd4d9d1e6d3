// Package doctemplate compiles and renders document templates.
//
// Templates mix literal text with directives delimited by $...$ or ${...}:
//
//	$title$                        interpolation, with /filters
//	$if(draft)$...$else$...$endif$ conditionals, elseif chains
//	$for(authors)$$it.name$$sep$, $endfor$
//	$authors/uppercase[, ]$        loop shorthand with a separator
//	$header()$ $authors:byline()$  partials, bare or per element
//	$^$                            nested block
//	$~$                            reflow toggle
//	$-- comment                    to end of line
//	$$                             a literal dollar sign
//
// A compiled Template is immutable and may be rendered concurrently.
package doctemplate

import (
	"io"
)

// Template is a compiled template.
type Template struct {
	Path string
	Root Node
}

// Compile parses src. path names the template; partials are resolved
// relative to it and fetched through loader, which may be nil when the
// template includes none.
func Compile(src, path string, loader Loader) (*Template, error) {
	p := newParser(src, path, loader, 0)
	root, err := p.parseTemplate()
	if err != nil {
		return nil, err
	}
	return &Template{Path: path, Root: root}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src, path string, loader Loader) *Template {
	t, err := Compile(src, path, loader)
	if err != nil {
		panic(err)
	}
	return t
}

// Render evaluates t against ctx. Missing values render as empty text;
// rendering never fails.
func Render(t *Template, ctx Value) string {
	return t.Render(ctx)
}

// Apply compiles src and renders it against ctx.
func Apply(src, path string, loader Loader, ctx Value) (string, error) {
	t, err := Compile(src, path, loader)
	if err != nil {
		return "", err
	}
	return t.Render(ctx), nil
}

// Render evaluates the template against ctx.
func (t *Template) Render(ctx Value) string {
	var out output
	render(t.Root, scope{ctx: ctx}, &out)
	return out.String()
}

// Segments evaluates the template and returns the output split at breaking
// spaces, for consumers that wrap lines.
func (t *Template) Segments(ctx Value) []Segment {
	var out output
	render(t.Root, scope{ctx: ctx}, &out)
	return out.segments()
}

// Execute renders the template against data converted with FromGo and
// writes the result to w.
func (t *Template) Execute(w io.Writer, data any) error {
	_, err := io.WriteString(w, t.Render(FromGo(data)))
	return err
}
