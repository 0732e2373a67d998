package schemafile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
)

const defaultDebounce = 200 * time.Millisecond

// ReloadFunc receives a schema each time its file is loaded successfully.
type ReloadFunc func(ctx context.Context, schema domain.Schema) error

// Watcher reloads schema files when they change on disk. It watches the
// parent directories so files replaced by rename are still picked up.
type Watcher struct {
	files    map[string]struct{}
	onReload ReloadFunc
	logger   *slog.Logger
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewWatcher(files []string, onReload ReloadFunc, logger *slog.Logger) (*Watcher, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no schema files to watch")
	}
	if logger == nil {
		logger = slog.Default()
	}
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", f, err)
		}
		set[abs] = struct{}{}
	}
	return &Watcher{
		files:    set,
		onReload: onReload,
		logger:   logger,
		debounce: defaultDebounce,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// LoadAll loads every watched file once. It stops at the first failure.
func (w *Watcher) LoadAll(ctx context.Context) error {
	for file := range w.files {
		if err := w.reload(ctx, file); err != nil {
			return err
		}
	}
	return nil
}

// Run blocks until ctx is done, reloading files as they change. A file that
// fails to load keeps its previous schema.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	dirs := make(map[string]struct{})
	for file := range w.files {
		dirs[filepath.Dir(file)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.logger.Info("schema watcher started", "files", len(w.files))

	defer w.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			file := filepath.Clean(event.Name)
			if _, watched := w.files[file]; !watched {
				continue
			}
			w.schedule(ctx, file)
		case err, ok := <-fw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("schema watcher error", "error", err)
		}
	}
}

func (w *Watcher) schedule(ctx context.Context, file string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[file]; ok {
		t.Stop()
	}
	w.timers[file] = time.AfterFunc(w.debounce, func() {
		if err := w.reload(ctx, file); err != nil {
			w.logger.Error("schema reload failed", "file", file, "error", err)
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for file, t := range w.timers {
		t.Stop()
		delete(w.timers, file)
	}
}

func (w *Watcher) reload(ctx context.Context, file string) error {
	schema, err := LoadFile(file)
	if err != nil {
		return err
	}
	if err := w.onReload(ctx, schema); err != nil {
		return fmt.Errorf("apply %s: %w", file, err)
	}
	w.logger.Info("schema loaded", "file", file, "schema", schema.Name, "columns", len(schema.Columns))
	return nil
}
