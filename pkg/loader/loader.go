// Package loader provides partial-fetch capabilities for doctemplate:
// directories on disk, io/fs trees, remote libraries and ordered chains of
// these.
package loader

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/neurodesk/doctemplate/pkg/doctemplate"
	"github.com/neurodesk/doctemplate/pkg/netcache"
)

func notFound(p string, err error) error {
	return &doctemplate.PartialNotFoundError{Path: p, Err: err}
}

// Dir loads partial paths relative to Root. An empty Root means the
// current directory.
type Dir struct {
	Root string
}

func (d Dir) Load(p string) (string, error) {
	full := filepath.Join(d.Root, filepath.FromSlash(p))
	b, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return "", notFound(p, err)
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FS loads partial paths from an io/fs tree, such as an embed.FS.
type FS struct {
	FS     fs.FS
	Prefix string
}

func (l FS) Load(p string) (string, error) {
	name := path.Clean(path.Join(l.Prefix, p))
	b, err := fs.ReadFile(l.FS, name)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
		return "", notFound(p, err)
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Search looks a partial up by its file name in each directory in turn.
// It backs the partial_dirs config setting.
type Search struct {
	Dirs []string
}

func (s Search) Load(p string) (string, error) {
	base := path.Base(p)
	for _, dir := range s.Dirs {
		text, err := Dir{Root: dir}.Load(base)
		if err == nil {
			return text, nil
		}
		if !IsNotFound(err) {
			return "", err
		}
	}
	return "", notFound(p, nil)
}

// HTTP fetches partials by file name from a remote base URL through a
// persistent cache.
type HTTP struct {
	BaseURL string
	Cache   *netcache.Cache
	Context context.Context
}

func (h HTTP) Load(p string) (string, error) {
	ctx := h.Context
	if ctx == nil {
		ctx = context.Background()
	}
	url := strings.TrimSuffix(h.BaseURL, "/") + "/" + path.Base(p)
	text, err := h.Cache.ReadText(ctx, url)
	if errors.Is(err, netcache.ErrNotFound) {
		return "", notFound(p, err)
	}
	return text, err
}

// Chain tries each loader in order and returns the first text found.
// Any error other than not-found stops the search.
type Chain []doctemplate.Loader

func (c Chain) Load(p string) (string, error) {
	for _, l := range c {
		text, err := l.Load(p)
		if err == nil {
			return text, nil
		}
		if !IsNotFound(err) {
			return "", err
		}
	}
	return "", notFound(p, nil)
}

// Logged wraps a loader and logs every fetch at debug level.
func Logged(l doctemplate.Loader, logger *slog.Logger) doctemplate.Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return doctemplate.LoaderFunc(func(p string) (string, error) {
		text, err := l.Load(p)
		if err != nil {
			logger.Debug("partial lookup failed", "path", p, "error", err)
		} else {
			logger.Debug("loaded partial", "path", p, "bytes", len(text))
		}
		return text, err
	})
}

// IsNotFound reports whether err means the partial does not exist.
func IsNotFound(err error) bool {
	var nf *doctemplate.PartialNotFoundError
	return errors.As(err, &nf)
}
