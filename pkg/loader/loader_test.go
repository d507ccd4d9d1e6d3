package loader

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/neurodesk/doctemplate/pkg/doctemplate"
	"github.com/neurodesk/doctemplate/pkg/netcache"
)

func writeFile(t *testing.T, path, text string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDirWithCompile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "docs", "header.md"), "# $title$\n")

	tpl, err := doctemplate.Compile("$header()$\ntext", "docs/main.md", Dir{Root: root})
	if err != nil {
		t.Fatal(err)
	}
	got := tpl.Render(doctemplate.Context{"title": doctemplate.StringValue("Intro")})
	if got != "# Intro\ntext" {
		t.Fatalf("got %q", got)
	}

	_, err = doctemplate.Compile("$nope()$", "docs/main.md", Dir{Root: root})
	var nf *doctemplate.PartialNotFoundError
	if !errors.As(err, &nf) || nf.Path != "docs/nope.md" {
		t.Fatalf("want not found for docs/nope.md, got %v", err)
	}
}

func TestFS(t *testing.T) {
	l := FS{FS: fstest.MapFS{"lib/a.md": {Data: []byte("A")}}, Prefix: "lib"}
	if text, err := l.Load("a.md"); err != nil || text != "A" {
		t.Fatalf("got %q, %v", text, err)
	}
	if _, err := l.Load("b.md"); !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestChainAndSearch(t *testing.T) {
	shared := t.TempDir()
	writeFile(t, filepath.Join(shared, "footer.md"), "shared footer")

	l := Chain{
		doctemplate.MemoryLoader{"docs/header.md": "local header"},
		Search{Dirs: []string{t.TempDir(), shared}},
	}
	if text, err := l.Load("docs/header.md"); err != nil || text != "local header" {
		t.Fatalf("header: %q, %v", text, err)
	}
	if text, err := l.Load("docs/footer.md"); err != nil || text != "shared footer" {
		t.Fatalf("footer: %q, %v", text, err)
	}
	if _, err := l.Load("docs/none.md"); !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestChainStopsOnHardError(t *testing.T) {
	boom := errors.New("boom")
	l := Chain{
		doctemplate.LoaderFunc(func(string) (string, error) { return "", boom }),
		doctemplate.MemoryLoader{"x.md": "x"},
	}
	if _, err := l.Load("x.md"); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
}

func TestHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lib/sig.md" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("-- $author$\n"))
	}))
	defer srv.Close()

	l := Logged(HTTP{BaseURL: srv.URL + "/lib/", Cache: netcache.New(t.TempDir())}, nil)
	out, err := doctemplate.Apply("Bye\n$sig()$", "letters/note.md", l,
		doctemplate.Context{"author": doctemplate.StringValue("Ada")})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Bye\n-- Ada" {
		t.Fatalf("got %q", out)
	}
	if _, err := l.Load("letters/missing.md"); !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}
