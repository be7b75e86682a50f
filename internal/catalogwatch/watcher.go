// Package catalogwatch reloads the protocol catalog when its file changes.
//
// Changes are debounced, the file is parsed and compiled into a fresh
// protocol.Registry, and the registry is swapped into a protocol.Holder.
// A catalog that fails to load or compile leaves the previous registry in
// place.
package catalogwatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nerrad567/pilight-gateway/internal/protocol"
)

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 250 * time.Millisecond

// ErrNoPath is returned by New when no catalog file is configured.
var ErrNoPath = errors.New("catalogwatch: catalog path is required")

// Logger is the logging interface the watcher needs. It is also handed to
// every rebuilt registry, so catalog warnings from a reload are kept.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ReloadHook observes every reload attempt. On success cat is the catalog
// now being served and err is nil; on failure cat is nil.
type ReloadHook func(ctx context.Context, cat *protocol.Catalog, err error)

// Config holds watcher settings.
type Config struct {
	// Path is the catalog file to watch.
	Path string

	// Format overrides extension-based detection.
	Format protocol.Format

	// Strict is passed to protocol.WithStrict for every rebuild.
	Strict bool

	// Debounce is the quiet period after the last change before reloading.
	Debounce time.Duration
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the watcher's logger.
func WithLogger(logger Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithHook registers a callback run after each reload attempt.
func WithHook(hook ReloadHook) Option {
	return func(w *Watcher) {
		w.hook = hook
	}
}

// Watcher swaps a new registry into a Holder whenever the catalog file changes.
type Watcher struct {
	cfg       Config
	holder    *protocol.Holder
	logger    Logger
	hook      ReloadHook
	fsWatcher *fsnotify.Watcher

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a watcher for cfg.Path serving into holder.
func New(cfg Config, holder *protocol.Holder, opts ...Option) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, ErrNoPath
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Format == "" {
		cfg.Format = protocol.FormatAuto
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:       cfg,
		holder:    holder,
		logger:    noopLogger{},
		fsWatcher: fsw,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start watches the directory containing the catalog file. Editors that
// save by renaming a temporary file over the original only show up as
// events on the directory. Reloads run with ctx until Stop is called or
// ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.cfg.Path)
	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}

	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.Info("watching protocol catalog", "path", w.cfg.Path, "debounce", w.cfg.Debounce)
	return nil
}

// Stop terminates the watcher and releases resources. It is safe to call
// more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
		w.wg.Wait()
	})
	return err
}

// Reload loads the catalog file, compiles it and swaps it into the holder.
// On error the holder keeps its current registry.
func (w *Watcher) Reload(ctx context.Context) error {
	cat, err := w.rebuild(ctx)
	if w.hook != nil {
		w.hook(ctx, cat, err)
	}
	return err
}

func (w *Watcher) rebuild(ctx context.Context) (*protocol.Catalog, error) {
	cat, err := protocol.FileLoader{Path: w.cfg.Path, Format: w.cfg.Format}.Load(ctx)
	if err != nil {
		w.logger.Error("catalog reload failed, keeping previous catalog", "path", w.cfg.Path, "error", err)
		return nil, err
	}

	reg, err := protocol.NewRegistry(ctx, cat,
		protocol.WithLogger(w.logger),
		protocol.WithStrict(w.cfg.Strict),
	)
	if err != nil {
		w.logger.Error("catalog rejected, keeping previous catalog", "path", w.cfg.Path, "error", err)
		return nil, err
	}

	w.holder.Swap(reg)
	w.logger.Info("protocol catalog reloaded", "path", w.cfg.Path, "protocols", reg.Len())
	return reg.Catalog(), nil
}

// loop processes file system events with debouncing.
func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		var fire <-chan time.Time
		if timer != nil {
			fire = timer.C
		}

		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
			} else {
				timer.Reset(w.cfg.Debounce)
			}

		case <-fire:
			timer = nil
			_ = w.Reload(ctx)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("catalog watcher error", "error", err)

		case <-ctx.Done():
			return

		case <-w.done:
			return
		}
	}
}

// isRelevantEvent reports whether the event touched the catalog file.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	return filepath.Base(event.Name) == filepath.Base(w.cfg.Path)
}
