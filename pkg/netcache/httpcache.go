// Package netcache keeps a persistent on-disk copy of remote template files
// and revalidates it with ETag/Last-Modified.
package netcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned (wrapped) when the server answers 404 or 410.
var ErrNotFound = errors.New("remote file not found")

// Cache is a persistent HTTP cache rooted at Dir.
type Cache struct {
	Dir     string
	Client  *http.Client
	Logger  *slog.Logger
	Retries int
	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration
}

// New returns a Cache with a default HTTP client.
func New(dir string) *Cache {
	return &Cache{
		Dir:     dir,
		Client:  &http.Client{Timeout: 2 * time.Minute},
		Retries: 3,
		Backoff: time.Second,
	}
}

// DefaultDir returns DOCTEMPLATE_HTTP_CACHE_DIR if set, otherwise a
// doctemplate directory below the user cache dir.
func DefaultDir() string {
	if d := strings.TrimSpace(os.Getenv("DOCTEMPLATE_HTTP_CACHE_DIR")); d != "" {
		return d
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "doctemplate", "http")
}

type meta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	Filename     string    `json:"filename,omitempty"`
	DataFile     string    `json:"data_file"`
	Fetched      time.Time `json:"fetched"`
}

func (c *Cache) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// ReadText returns the body of url, served from the cache when the server
// reports it unchanged or cannot be reached.
func (c *Cache) ReadText(ctx context.Context, url string) (string, error) {
	path, _, err := c.Get(ctx, url)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Get fetches url into the cache and returns the local file path and
// whether the cached copy was used.
func (c *Cache) Get(ctx context.Context, url string) (string, bool, error) {
	key := hash(url)
	mpath := filepath.Join(c.Dir, key+".json")
	m, ok := c.readMeta(mpath, url)
	if ok {
		path, fresh, err := c.revalidate(ctx, url, key, mpath, m)
		switch {
		case err == nil:
			return path, fresh, nil
		case errors.Is(err, ErrNotFound):
			return "", false, err
		case ctx.Err() != nil:
			return "", false, ctx.Err()
		}
		c.logger().Warn("revalidation failed, using cached copy", "url", url, "error", err)
		return filepath.Join(c.Dir, m.DataFile), true, nil
	}

	var lastErr error
	retries := max(c.Retries, 1)
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			delay := c.Backoff << (attempt - 1)
			c.logger().Debug("retrying download", "url", url, "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return "", false, ctx.Err()
			case <-time.After(delay):
			}
		}
		path, err := c.fetch(ctx, url, key, mpath, nil)
		if err == nil {
			return path, false, nil
		}
		if errors.Is(err, ErrNotFound) {
			return "", false, err
		}
		lastErr = err
	}
	return "", false, fmt.Errorf("fetching %s: %w", url, lastErr)
}

func (c *Cache) readMeta(mpath, url string) (meta, bool) {
	var m meta
	b, err := os.ReadFile(mpath)
	if err != nil {
		return m, false
	}
	if err := json.Unmarshal(b, &m); err != nil {
		c.logger().Warn("ignoring corrupt cache entry", "path", mpath, "error", err)
		return m, false
	}
	if m.URL != url || m.DataFile == "" || !fileExists(filepath.Join(c.Dir, m.DataFile)) {
		return m, false
	}
	return m, true
}

func (c *Cache) revalidate(ctx context.Context, url, key, mpath string, m meta) (string, bool, error) {
	hdr := http.Header{}
	if m.ETag != "" {
		hdr.Set("If-None-Match", m.ETag)
	}
	if m.LastModified != "" {
		hdr.Set("If-Modified-Since", m.LastModified)
	}
	path, err := c.fetch(ctx, url, key, mpath, hdr)
	if errors.Is(err, errNotModified) {
		return filepath.Join(c.Dir, m.DataFile), true, nil
	}
	return path, false, err
}

var errNotModified = errors.New("not modified")

// fetch performs one GET and stores a successful body.
func (c *Cache) fetch(ctx context.Context, url, key, mpath string, hdr http.Header) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return "", errNotModified
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", fmt.Errorf("%s: %w", url, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("%s: HTTP %d", url, resp.StatusCode)
	}

	dataFile := key + ".data"
	path := filepath.Join(c.Dir, dataFile)
	name := contentFilename(url, resp)
	var body io.Reader = resp.Body
	var pr *progressReporter
	if verboseEnabled() {
		pr = &progressReporter{total: resp.ContentLength, label: name, start: time.Now()}
		body = io.TeeReader(resp.Body, pr)
	}
	err = streamToFile(body, path, 0o644)
	if pr != nil {
		pr.finish()
	}
	if err != nil {
		return "", err
	}
	nm := meta{
		URL:          url,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		Filename:     name,
		DataFile:     dataFile,
		Fetched:      time.Now().UTC(),
	}
	if err := writeMeta(mpath, nm); err != nil {
		return "", err
	}
	c.logger().Debug("cached remote file", "url", url, "path", path)
	return path, nil
}

func streamToFile(r io.Reader, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// progressReporter prints a status line to stderr while a body downloads.
type progressReporter struct {
	total    int64
	read     int64
	label    string
	start    time.Time
	lastTick time.Time
}

func (p *progressReporter) Write(b []byte) (int, error) {
	p.read += int64(len(b))
	if now := time.Now(); now.Sub(p.lastTick) >= 200*time.Millisecond {
		p.print(now)
		p.lastTick = now
	}
	return len(b), nil
}

func (p *progressReporter) finish() {
	p.print(time.Now())
	fmt.Fprintln(os.Stderr)
}

func (p *progressReporter) print(now time.Time) {
	total := "unknown"
	if p.total > 0 {
		total = humanBytes(p.total)
	}
	line := fmt.Sprintf("\rFetching %s: %s / %s in %s", p.label, humanBytes(p.read), total, now.Sub(p.start).Round(time.Millisecond))
	if len(line) > 120 {
		line = line[:120]
	}
	fmt.Fprint(os.Stderr, line)
}

func humanBytes(n int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
	)
	switch {
	case n >= MB:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(MB))
	case n >= KB:
		return fmt.Sprintf("%.1f KB", float64(n)/float64(KB))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func writeMeta(path string, m meta) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// contentFilename derives a display name from Content-Disposition or the
// last URL path segment.
func contentFilename(url string, resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if i := strings.Index(cd, "filename="); i >= 0 {
			if v := strings.Trim(cd[i+len("filename="):], "\"'"); v != "" {
				return v
			}
		}
	}
	if slash := strings.LastIndex(url, "/"); slash >= 0 && slash+1 < len(url) {
		return url[slash+1:]
	}
	return "download"
}

// verboseEnabled reports whether DOCTEMPLATE_VERBOSE asks for progress output.
func verboseEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DOCTEMPLATE_VERBOSE"))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
