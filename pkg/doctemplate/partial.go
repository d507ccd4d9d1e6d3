package doctemplate

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// maxPartialDepth bounds partial inclusion. Deeper includes render as
// loopMarker instead of being compiled.
const maxPartialDepth = 50

const loopMarker = "(loop)"

// ResolvePartialPath locates partial name relative to the template at base.
// A name without an extension takes the extension of base; a name with one
// replaces the whole file name. The directory of base is kept.
//
//	ResolvePartialPath("docs/main.md", "header")    == "docs/header.md"
//	ResolvePartialPath("docs/main.md", "style.css") == "docs/style.css"
func ResolvePartialPath(base, name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	base = strings.ReplaceAll(base, `\`, "/")
	if base == "" {
		return path.Clean(name)
	}
	file := name
	if path.Ext(name) == "" {
		file = name + path.Ext(path.Base(base))
	}
	return path.Join(path.Dir(base), file)
}

// includePartial fetches and compiles the partial called name. The fetch
// happens even past the depth cap, so a missing partial is always
// reported. Compiled partials are reused: the result depends only on the
// path and depth, since every partial starts a fresh parse.
func (p *parser) includePartial(name string, pos Pos) (Node, error) {
	target := ResolvePartialPath(p.path, name)
	key := partialKey{path: target, depth: p.depth}
	if n, ok := p.partials[key]; ok {
		return n, nil
	}
	text, err := p.load(target)
	if err != nil {
		return nil, &ParseError{
			Path:    p.path,
			Pos:     pos,
			Message: fmt.Sprintf("cannot include partial %q", name),
			Err:     asNotFound(target, err),
		}
	}
	text = trimFinalNewline(text)
	var n Node
	if p.depth > maxPartialDepth {
		n = &LiteralNode{Text: loopMarker}
	} else {
		sub := newParser(text, target, p.loader, p.depth+1)
		sub.partials = p.partials
		body, err := sub.parseTemplate()
		if err != nil {
			return nil, err
		}
		n = &PartialNode{Path: target, Body: body}
	}
	p.partials[key] = n
	return n, nil
}

func (p *parser) load(target string) (string, error) {
	if p.loader == nil {
		return "", &PartialNotFoundError{Path: target}
	}
	return p.loader.Load(target)
}

func asNotFound(target string, err error) error {
	var nf *PartialNotFoundError
	if errors.As(err, &nf) {
		return err
	}
	return &PartialNotFoundError{Path: target, Err: err}
}

func trimFinalNewline(s string) string {
	if strings.HasSuffix(s, "\r\n") {
		return s[:len(s)-2]
	}
	return strings.TrimSuffix(s, "\n")
}
