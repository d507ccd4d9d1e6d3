package doctemplate

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func mustApply(t *testing.T, src string, loader Loader, data map[string]any) string {
	t.Helper()
	out, err := Apply(src, "main.md", loader, NewContextFromAny(data))
	if err != nil {
		t.Fatalf("apply %q: %v", src, err)
	}
	return out
}

func TestEscapedDollar(t *testing.T) {
	for _, data := range []map[string]any{nil, {"x": 1}} {
		if got := mustApply(t, "$$", nil, data); got != "$" {
			t.Fatalf("got %q, want %q", got, "$")
		}
	}
	if got := mustApply(t, "cost: $$5", nil, nil); got != "cost: $5" {
		t.Fatalf("got %q", got)
	}
}

func TestConditional(t *testing.T) {
	const src = "$if(x)$yes$else$no$endif$"
	if got := mustApply(t, src, nil, nil); got != "no" {
		t.Errorf("absent: got %q", got)
	}
	if got := mustApply(t, src, nil, map[string]any{"x": true}); got != "yes" {
		t.Errorf("true: got %q", got)
	}
	for _, falsy := range []any{false, nil, "", []any{}} {
		if got := mustApply(t, src, nil, map[string]any{"x": falsy}); got != "no" {
			t.Errorf("%#v: got %q", falsy, got)
		}
	}
	for _, truthy := range []any{0, "0", map[string]any{}, []any{false}} {
		if got := mustApply(t, src, nil, map[string]any{"x": truthy}); got != "yes" {
			t.Errorf("%#v: got %q", truthy, got)
		}
	}
}

func TestElseIf(t *testing.T) {
	const src = "$if(a)$A$elseif(b)$B$elseif(c)$C$else$D$endif$"
	tests := []struct {
		data map[string]any
		want string
	}{
		{map[string]any{"a": true, "b": true}, "A"},
		{map[string]any{"b": true, "c": true}, "B"},
		{map[string]any{"c": "yes"}, "C"},
		{nil, "D"},
	}
	for _, tt := range tests {
		if got := mustApply(t, src, nil, tt.data); got != tt.want {
			t.Errorf("%v: got %q, want %q", tt.data, got, tt.want)
		}
	}
	if got := mustApply(t, "$if(a)$A$elseif(b)$B$endif$", nil, nil); got != "" {
		t.Errorf("no branch: got %q", got)
	}
}

func TestLoopSeparator(t *testing.T) {
	const src = "$for(x)$$x$$sep$, $endfor$"
	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{"array", map[string]any{"x": []int{1, 2, 3}}, "1, 2, 3"},
		{"empty", map[string]any{"x": []int{}}, ""},
		{"absent", nil, ""},
		{"scalar", map[string]any{"x": 5}, "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustApply(t, src, nil, tt.data); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoopShorthand(t *testing.T) {
	data := map[string]any{"xs": []string{"a", "b"}}
	if got := mustApply(t, "$xs[, ]$", nil, data); got != "a, b" {
		t.Errorf("got %q", got)
	}
	if got := mustApply(t, "$xs/uppercase[; ]$", nil, data); got != "A; B" {
		t.Errorf("got %q", got)
	}
	if got := mustApply(t, "$xs[]$", nil, data); got != "ab" {
		t.Errorf("got %q", got)
	}
}

func TestLoopOverMapping(t *testing.T) {
	data := map[string]any{"person": map[string]any{"name": "Ada"}}
	if got := mustApply(t, "$for(person)$<$it.name$>$endfor$", nil, data); got != "<Ada>" {
		t.Fatalf("got %q", got)
	}
}

func TestFilterOrder(t *testing.T) {
	data := map[string]any{"x": "abc"}
	if got := mustApply(t, "$x/uppercase/reverse$", nil, data); got != "CBA" {
		t.Errorf("uppercase/reverse: got %q", got)
	}
	if got := mustApply(t, "$x/length/alpha$", nil, data); got != "d" {
		t.Errorf("length/alpha: got %q", got)
	}
	if got := mustApply(t, "$x/alpha/length$", nil, data); got != "3" {
		t.Errorf("alpha/length: got %q", got)
	}
}

func TestFilters(t *testing.T) {
	data := map[string]any{
		"s":     "Hello",
		"n":     27,
		"xs":    []string{"b", "a", "c"},
		"m":     map[string]any{"b": 2, "a": 1},
		"empty": nil,
	}
	tests := []struct {
		src  string
		want string
	}{
		{"$s/uppercase$", "HELLO"},
		{"$s/lowercase$", "hello"},
		{"$s/length$", "5"},
		{"$s/reverse$", "olleH"},
		{"$xs/length$", "3"},
		{"$m/length$", "2"},
		{"$empty/length$", "0"},
		{"$missing/length$", "0"},
		{"$n/alpha$", "ab"},
		{"$xs/reverse[]$", "cab"},
		{"$xs/uppercase[-]$", "B-A-C"},
		{"$for(m/pairs)$$it.key$=$it.value$$sep$;$endfor$", "a=1;b=2"},
		{"$for(xs/pairs)$$it.key$:$it.value$ $endfor$", "1:b 2:a 3:c "},
	}
	for _, tt := range tests {
		if got := mustApply(t, tt.src, nil, data); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestAlphaLabel(t *testing.T) {
	tests := map[int64]string{0: "a", 1: "b", 25: "z", 26: "aa", 27: "ab", 701: "zz", 702: "aaa"}
	for n, want := range tests {
		if got := AlphaLabel(n); got != want {
			t.Errorf("AlphaLabel(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestValueText(t *testing.T) {
	data := map[string]any{
		"str":   "padded  \n ",
		"int":   42,
		"float": 2.5,
		"whole": 3.0,
		"yes":   true,
		"no":    false,
		"null":  nil,
		"map":   map[string]any{"k": "v"},
		"list":  []any{[]any{"deep", "x"}, "y"},
	}
	tests := []struct {
		src  string
		want string
	}{
		{"[$str$]", "[padded]"},
		{"$int$", "42"},
		{"$float$", "2.5"},
		{"$whole$", "3"},
		{"$yes$", "true"},
		{"[$no$]", "[]"},
		{"[$null$]", "[]"},
		{"[$nothing$]", "[]"},
		{"$map$", "true"},
		{"$list$", "deep"},
		{"[$map.k.z$]", "[]"},
		{"$map.k$", "v"},
	}
	for _, tt := range tests {
		if got := mustApply(t, tt.src, nil, data); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestRescoping(t *testing.T) {
	data := map[string]any{
		"employees": []any{
			map[string]any{"name": "A"},
			map[string]any{"name": "B"},
		},
	}
	for _, src := range []string{
		"$for(employees)$$it.name$$endfor$",
		"$for(employees)$$employees.name$$endfor$",
	} {
		if got := mustApply(t, src, nil, data); got != "AB" {
			t.Errorf("%s: got %q, want %q", src, got, "AB")
		}
	}

	tpl := MustCompile("$for(a.b)$$a.b.c$$if(a.b)$!$endif$$endfor$", "", nil)
	it := tpl.Root.(*IterateNode)
	body := it.Body.(*ConcatNode)
	if got := body.Left.(*InterpolateNode).Var.String(); got != "it.c" {
		t.Errorf("body variable = %s, want it.c", got)
	}
	if got := body.Right.(*ConditionalNode).Var.String(); got != "it" {
		t.Errorf("condition variable = %s, want it", got)
	}
}

func TestNestedLoops(t *testing.T) {
	data := map[string]any{
		"groups": []any{
			map[string]any{"name": "g1", "items": []any{"a", "b"}},
			map[string]any{"name": "g2", "items": []any{"c"}},
		},
	}
	src := "$for(groups)$$groups.name$:$for(groups.items)$ $groups.items$$endfor$;$endfor$"
	if got := mustApply(t, src, nil, data); got != "g1: a b;g2: c;" {
		t.Fatalf("got %q", got)
	}
}

func TestPartials(t *testing.T) {
	loader := MemoryLoader{
		"header.md": "# $title$\n",
		"byline.md": "$it.name$ <$it.email$>",
		"note.txt":  "plain",
		"scoped.md": "[$xs$]",
	}
	data := map[string]any{
		"title": "Report",
		"authors": []any{
			map[string]any{"name": "A", "email": "a@x"},
			map[string]any{"name": "B", "email": "b@x"},
		},
		"xs": []string{"p", "q"},
	}
	tests := []struct {
		src  string
		want string
	}{
		{"$header()$\nbody", "# Report\nbody"},
		{"by $authors:byline()[, ]$.", "by A <a@x>, B <b@x>."},
		{"-$note.txt()$-", "-plain-"},
		{"$for(xs)$$scoped()$$endfor$", "[p][p]"},
		{"${ header() }", "# Report"},
	}
	for _, tt := range tests {
		if got := mustApply(t, tt.src, loader, data); got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestPartialRecursionGuard(t *testing.T) {
	loader := MemoryLoader{
		"self.md": "x$self()$\n",
		"ping.md": "$pong()$",
		"pong.md": "$ping()$",
	}
	got := mustApply(t, "$self()$", loader, nil)
	if want := strings.Repeat("x", maxPartialDepth+1) + loopMarker; got != want {
		t.Errorf("self: got %q, want %q", got, want)
	}
	if got := mustApply(t, "$ping()$", loader, nil); got != loopMarker {
		t.Errorf("cycle: got %q", got)
	}
}

func TestPartialIncludedTwiceCompilesOnce(t *testing.T) {
	var fetches int
	loader := LoaderFunc(func(path string) (string, error) {
		fetches++
		if path != "s.md" {
			return "", &PartialNotFoundError{Path: path}
		}
		return "$s()$$s()$", nil
	})

	done := make(chan *Template, 1)
	go func() {
		tpl, err := Compile("$s()$", "m.md", loader)
		if err != nil {
			t.Error(err)
		}
		done <- tpl
	}()
	var tpl *Template
	select {
	case tpl = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("compiling a partial that includes itself twice did not finish")
	}
	if tpl == nil {
		return
	}

	if fetches != maxPartialDepth+2 {
		t.Errorf("fetched %d times, want one fetch per depth (%d)", fetches, maxPartialDepth+2)
	}
	if got := tpl.Partials(); !reflect.DeepEqual(got, []string{"s.md"}) {
		t.Errorf("partials = %v", got)
	}
	top := tpl.Root.(*NestedNode).Body.(*PartialNode)
	both := top.Body.(*ConcatNode)
	if both.Left != both.Right {
		t.Error("both includes at the same depth should share one compiled partial")
	}
	if !strings.Contains(Pretty(tpl.Root), `Partial("s.md") (shared)`) {
		t.Error("Pretty should print a shared partial once")
	}
}

func TestPartialNotFound(t *testing.T) {
	_, err := Compile("a\n  $missing()$", "docs/main.md", MemoryLoader{})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("want *ParseError, got %v", err)
	}
	if perr.Pos.Line != 2 || perr.Pos.Column != 3 {
		t.Errorf("position = %v, want 2:3", perr.Pos)
	}
	var nf *PartialNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("want *PartialNotFoundError in chain, got %v", err)
	}
	if nf.Path != "docs/missing.md" {
		t.Errorf("path = %q", nf.Path)
	}

	if _, err := Compile("$p()$", "main.md", nil); !errors.As(err, &nf) {
		t.Errorf("nil loader: want *PartialNotFoundError, got %v", err)
	}
}

func TestPartialErrorPath(t *testing.T) {
	_, err := Compile("$bad()$", "main.md", MemoryLoader{"bad.md": "ok\n$if(x)$"})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("want *ParseError, got %v", err)
	}
	if perr.Path != "bad.md" || perr.Pos.Line != 2 {
		t.Errorf("got %s", perr)
	}
}

func TestResolvePartialPath(t *testing.T) {
	tests := []struct {
		base, name, want string
	}{
		{"main.md", "header", "header.md"},
		{"docs/main.md", "header", "docs/header.md"},
		{"docs/main.md", "style.css", "docs/style.css"},
		{"docs/main.html", "parts/nav", "docs/parts/nav.html"},
		{`docs\main.md`, `parts\nav`, "docs/parts/nav.md"},
		{"", "header", "header"},
		{"noext", "header", "header"},
	}
	for _, tt := range tests {
		if got := ResolvePartialPath(tt.base, tt.name); got != tt.want {
			t.Errorf("ResolvePartialPath(%q, %q) = %q, want %q", tt.base, tt.name, got, tt.want)
		}
	}
}

func TestIndentation(t *testing.T) {
	data := map[string]any{"body": "a\nb\n\nc"}
	if got := mustApply(t, "    $body$", nil, data); got != "    a\n    b\n\n    c" {
		t.Errorf("standalone: got %q", got)
	}
	if got := mustApply(t, "x:  $body$", nil, data); got != "x:  a\nb\n\nc" {
		t.Errorf("inline: got %q", got)
	}
	if got := mustApply(t, "  $body$ tail", nil, data); got != "  a\nb\n\nc tail" {
		t.Errorf("followed by text: got %q", got)
	}
}

func TestIndentationExpandsTabs(t *testing.T) {
	data := map[string]any{"x": "a\nb"}
	tests := []struct {
		src  string
		want string
	}{
		{"\t$x$", "\ta\n        b"},
		{"  \t$x$", "  \ta\n        b"},
		{"\t  $x$", "\t  a\n          b"},
		{"\t\t$x$", "\t\ta\n                b"},
	}
	for _, tt := range tests {
		if got := mustApply(t, tt.src, nil, data); got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestStandalonePartialIsNested(t *testing.T) {
	loader := MemoryLoader{"list.md": "one\ntwo\n"}
	got := mustApply(t, "items:\n  $list()$\ndone", loader, nil)
	if want := "items:\n  one\n  two\ndone"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNestedBlock(t *testing.T) {
	data := map[string]any{"body": "x\ny"}
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"dedent ends block", "- $^$$body$\n  more\nend", "- x\n  y\n  more\nend"},
		{"blank line continues", "  $^$a\n\n  b\nc", "  a\n\n  b\nc"},
		{"blank line then dedent", "  $^$a\n  b\n\nc", "  a\n  b\n\nc"},
		{"end of input", "* $^$$body$", "* x\n  y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustApply(t, tt.src, nil, data); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNestedBlockInsideConditional(t *testing.T) {
	src := "$if(x)$\n  $^$$body$\n  tail\n$endif$\nafter"
	data := map[string]any{"x": true, "body": "p\nq"}
	if got := mustApply(t, src, nil, data); got != "  p\n  q\n  tail\nafter" {
		t.Fatalf("got %q", got)
	}
	src = "$if(x)$- $^$$body$$endif$!"
	if got := mustApply(t, src, nil, data); got != "- p\n  q!" {
		t.Fatalf("keyword on block line: got %q", got)
	}
}

func TestMultilineDirectives(t *testing.T) {
	src := "$if(x)$\nyes\n$else$\nno\n$endif$\nafter"
	if got := mustApply(t, src, nil, map[string]any{"x": true}); got != "yes\nafter" {
		t.Errorf("then: got %q", got)
	}
	if got := mustApply(t, src, nil, nil); got != "no\nafter" {
		t.Errorf("else: got %q", got)
	}

	src = "$for(xs)$\n- $it$\n$sep$\n--\n$endfor$\n"
	data := map[string]any{"xs": []string{"a", "b"}}
	if got := mustApply(t, src, nil, data); got != "- a\n--\n- b\n" {
		t.Errorf("for: got %q", got)
	}

	src = "$if(x)$yes\n$endif$\nafter"
	if got := mustApply(t, src, nil, map[string]any{"x": true}); got != "yes\n\nafter" {
		t.Errorf("inline open keeps newlines: got %q", got)
	}
}

func TestComments(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"a $-- note\nb", "a \nb"},
		{"$-- whole line\nb", "b"},
		{"a\n$-- one\n$-- two\nb", "a\nb"},
		{"a $-- at end", "a "},
	}
	for _, tt := range tests {
		if got := mustApply(t, tt.src, nil, nil); got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestDelimiters(t *testing.T) {
	data := map[string]any{"x": "v", "xs": []string{"a", "b"}}
	tests := []struct {
		src  string
		want string
	}{
		{"${x}", "v"},
		{"${ x }", "v"},
		{"$ x $", "v"},
		{"${if(x)}y${endif}", "y"},
		{"${for(xs)}${it}${sep},${endfor}", "a,b"},
		{"${x}$$${x}", "v$v"},
	}
	for _, tt := range tests {
		if got := mustApply(t, tt.src, nil, data); got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestReflow(t *testing.T) {
	tpl := MustCompile("$~$a  b\nc$~$ d", "", nil)
	want := []Segment{
		{Text: "a"},
		{Text: " ", Break: true},
		{Text: "b"},
		{Text: " ", Break: true},
		{Text: "c d"},
	}
	if got := tpl.Segments(nil); !reflect.DeepEqual(got, want) {
		t.Fatalf("segments = %#v", got)
	}
	if got := tpl.Render(nil); got != "a b c d" {
		t.Fatalf("render = %q", got)
	}

	tpl = MustCompile("$~$one\n\ntwo$~$", "", nil)
	if got := tpl.Render(nil); got != "one\n\ntwo" {
		t.Fatalf("paragraph = %q", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		line int
		col  int
		msg  string
	}{
		{"$if(x)$a", 1, 1, "unterminated if"},
		{"$for(x)$a$sep$b", 1, 1, "unterminated for"},
		{"a$endif$", 1, 2, "unexpected endif"},
		{"$for(x)$a$endif$", 1, 10, "unexpected endif"},
		{"$if(x)$a$sep$b$endif$", 1, 9, "unexpected sep"},
		{"ab\n  $x/nope$", 2, 6, "unknown filter"},
		{"$x/$", 1, 4, "expected filter name"},
		{"$a.if$", 1, 4, "reserved word"},
		{"$a.it$", 1, 4, "reserved word"},
		{"$else.x$", 1, 2, "reserved word"},
		{"$", 1, 1, "unterminated directive"},
		{"a $ 5$", 1, 5, "expected variable name"},
		{"${x$", 1, 4, "expected '}'"},
		{"$x y$", 1, 4, "expected '$'"},
		{"$x[, $", 1, 3, "unterminated separator"},
		{"$a:()$", 1, 4, "expected partial name"},
	}
	for _, tt := range tests {
		_, err := Compile(tt.src, "t.md", nil)
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("%q: want *ParseError, got %v", tt.src, err)
			continue
		}
		if perr.Pos.Line != tt.line || perr.Pos.Column != tt.col {
			t.Errorf("%q: position %v, want %d:%d", tt.src, perr.Pos, tt.line, tt.col)
		}
		if !strings.Contains(perr.Message, tt.msg) {
			t.Errorf("%q: message %q does not mention %q", tt.src, perr.Message, tt.msg)
		}
		if !strings.HasPrefix(perr.Error(), "t.md:") {
			t.Errorf("%q: error %q lacks path", tt.src, perr.Error())
		}
	}
}

func TestRenderLargeLoop(t *testing.T) {
	const n = 50000
	items := make([]any, n)
	for i := range items {
		items[i] = i
	}
	tpl := MustCompile("$for(xs)$- $it$\n$endfor$", "", nil)
	ctx := NewContextFromAny(map[string]any{"xs": items})

	start := time.Now()
	got := tpl.Render(ctx)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("rendering %d items took %v", n, elapsed)
	}
	if lines := strings.Count(got, "\n"); lines != n {
		t.Fatalf("got %d lines, want %d", lines, n)
	}
	if !strings.HasPrefix(got, "- 0\n- 1\n") || !strings.HasSuffix(got, "- 49999\n") {
		t.Fatalf("unexpected output ends: %q ... %q", got[:10], got[len(got)-10:])
	}
}

func BenchmarkRenderLoop(b *testing.B) {
	items := make([]any, 10000)
	for i := range items {
		items[i] = "item"
	}
	tpl := MustCompile("$for(xs)$- $it$\n$endfor$", "", nil)
	ctx := NewContextFromAny(map[string]any{"xs": items})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tpl.Render(ctx)
	}
}

func TestCompiledShape(t *testing.T) {
	tpl := MustCompile("a$x$b", "", nil)
	want := &ConcatNode{
		Left: &LiteralNode{Text: "a"},
		Right: &ConcatNode{
			Left:  &InterpolateNode{Var: Variable{Path: []string{"x"}}},
			Right: &LiteralNode{Text: "b"},
		},
	}
	if !reflect.DeepEqual(tpl.Root, want) {
		t.Fatalf("got\n%s", Pretty(tpl.Root))
	}

	tpl = MustCompile("    $x$\n", "", nil)
	interp := tpl.Root.(*ConcatNode).Right.(*ConcatNode).Left.(*InterpolateNode)
	if interp.Indent != Indented(4) {
		t.Fatalf("indent = %+v", interp.Indent)
	}
}

func TestCombineMonoid(t *testing.T) {
	frags := []Node{
		Empty,
		MustCompile("x$y$", "", nil).Root,
		MustCompile("z", "", nil).Root,
		MustCompile("$if(q)$w$endif$", "", nil).Root,
		MustCompile("$~$a b$~$", "", nil).Root,
		&LiteralNode{Text: "lit"},
	}
	for _, a := range frags {
		if got := Combine(Empty, a); !reflect.DeepEqual(got, a) {
			t.Errorf("left identity failed for\n%s", Pretty(a))
		}
		if got := Combine(a, Empty); !reflect.DeepEqual(got, a) {
			t.Errorf("right identity failed for\n%s", Pretty(a))
		}
		for _, b := range frags {
			for _, c := range frags {
				l := Combine(Combine(a, b), c)
				r := Combine(a, Combine(b, c))
				if !reflect.DeepEqual(l, r) {
					t.Errorf("associativity failed:\n%s\nvs\n%s", Pretty(l), Pretty(r))
				}
			}
		}
	}
}

func TestRenderDeterministicAndReusable(t *testing.T) {
	tpl := MustCompile("$for(m/pairs)$$it.key$$endfor$ $title/uppercase$", "", nil)
	ctx1 := NewContextFromAny(map[string]any{"m": map[string]any{"c": 1, "a": 2, "b": 3}, "title": "t"})
	ctx2 := NewContextFromAny(map[string]any{"title": "other"})
	first := tpl.Render(ctx1)
	for i := 0; i < 10; i++ {
		if got := tpl.Render(ctx1); got != first {
			t.Fatalf("render %d = %q, want %q", i, got, first)
		}
	}
	if first != "abc T" {
		t.Errorf("got %q", first)
	}
	if got := tpl.Render(ctx2); got != " OTHER" {
		t.Errorf("second context: got %q", got)
	}
}

func TestExecuteStruct(t *testing.T) {
	type author struct {
		Name  string `yaml:"name"`
		Email string
	}
	data := struct {
		Title   string   `yaml:"title"`
		Authors []author `yaml:"authors"`
	}{"Doc", []author{{"A", "a@x"}, {"B", "b@x"}}}

	var b strings.Builder
	tpl := MustCompile("$title$: $for(authors)$$it.name$/$it.Email$$sep$, $endfor$", "", nil)
	if err := tpl.Execute(&b, data); err != nil {
		t.Fatal(err)
	}
	if got := b.String(); got != "Doc: A/a@x, B/b@x" {
		t.Fatalf("got %q", got)
	}
}

func TestTemplatePartials(t *testing.T) {
	loader := MemoryLoader{"a.md": "$b()$", "b.md": "b", "c.md": "c"}
	tpl := MustCompile("$a()$ $c()$ $a()$", "main.md", loader)
	if got := tpl.Partials(); !reflect.DeepEqual(got, []string{"a.md", "b.md", "c.md"}) {
		t.Fatalf("got %v", got)
	}
}

func TestTemplateString(t *testing.T) {
	ts := TemplateString("out/${slug}.md")
	if err := ts.Validate(); err != nil {
		t.Fatal(err)
	}
	got, err := ts.Render(NewContextFromAny(map[string]any{"slug": "intro"}))
	if err != nil {
		t.Fatal(err)
	}
	if got != "out/intro.md" {
		t.Fatalf("got %q", got)
	}
	if err := TemplateString("$if(x)$").Validate(); err == nil {
		t.Fatal("expected error")
	}
	if err := TemplateString("$p()$").Validate(); err == nil {
		t.Fatal("expected error for partial")
	}
}
