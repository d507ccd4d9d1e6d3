// Package watch re-runs a callback when template inputs change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config selects what to watch.
type Config struct {
	// Paths are files or directories. Files are watched through their
	// parent directory so editors that replace files on save still trigger.
	Paths []string

	// Debounce is the quiet period before the callback runs (default 100ms).
	Debounce time.Duration

	// Extensions filter events inside watched directories, e.g. ".md".
	// Empty means every file.
	Extensions []string

	SkipHidden bool
}

// Watcher reports changes to a set of files and directories.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	config   Config
	debounce *Debouncer

	files map[string]bool
	dirs  map[string]bool

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a watcher for cfg.Paths. Paths that do not exist are an
// error.
func New(cfg Config, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w := &Watcher{
		watcher:  fsw,
		logger:   logger,
		config:   cfg,
		debounce: NewDebouncer(cfg.Debounce),
		files:    map[string]bool{},
		dirs:     map[string]bool{},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, p := range cfg.Paths {
		if err := w.add(p); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		w.files[abs] = true
		return w.watchDir(filepath.Dir(abs))
	}
	return filepath.WalkDir(abs, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.config.SkipHidden && p != abs && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		w.dirs[p] = true
		return w.watchDir(p)
	})
}

func (w *Watcher) watchDir(dir string) error {
	if slices.Contains(w.watcher.WatchList(), dir) {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.logger.Debug("watching directory", "path", dir)
	return nil
}

// Watch blocks until ctx is done or Stop is called, running onChange once
// each burst of relevant events settles. Calls to onChange never overlap:
// changes that arrive while it runs are coalesced into one further call.
// Callback errors are logged, not returned.
func (w *Watcher) Watch(ctx context.Context, onChange func(path string) error) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	w.logger.Info("watching for changes", "paths", w.config.Paths)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("file event", "path", event.Name, "op", event.Op.String())
			w.debounce.Trigger(event.Name)
		case name := <-w.debounce.C:
			if err := onChange(name); err != nil {
				w.logger.Error("rebuild failed", "path", name, "error", err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

// Stop ends Watch and releases the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	close(w.stopCh)
	if running {
		<-w.doneCh
	}
	w.debounce.Stop()
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("closing watcher: %w", err)
	}
	return nil
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(event.Name)
	if w.files[name] {
		return true
	}
	if !w.dirs[filepath.Dir(name)] {
		return false
	}
	if w.config.SkipHidden && strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	if len(w.config.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range w.config.Extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// Debouncer coalesces bursts of change notifications. Once no Trigger has
// arrived for its interval, the most recent path is delivered on C. C holds
// at most one undelivered path; a later burst while it is full is folded
// into that notification.
type Debouncer struct {
	C <-chan string

	c        chan string
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending string
	stopped bool
}

func NewDebouncer(interval time.Duration) *Debouncer {
	c := make(chan string, 1)
	return &Debouncer{C: c, c: c, interval: interval}
}

// Trigger records path and restarts the quiet period.
func (d *Debouncer) Trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = path
	if d.timer == nil {
		d.timer = time.AfterFunc(d.interval, d.fire)
		return
	}
	d.timer.Reset(d.interval)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.pending == "" {
		return
	}
	select {
	case d.c <- d.pending:
	default:
	}
	d.pending = ""
}

// Stop cancels any pending notification.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = ""
	if d.timer != nil {
		d.timer.Stop()
	}
}
