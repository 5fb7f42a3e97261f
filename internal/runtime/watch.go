package runtime

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Live holds one runtime build behind an atomic pointer. A reload swaps
// the pointer to an entirely new *Runtime rather than mutating the one
// in place, so any goroutine holding a *Runtime from Load keeps using a
// fully consistent, never-mutated IR even mid-swap.
type Live struct {
	ptr atomic.Pointer[Runtime]
}

func (l *Live) Load() *Runtime { return l.ptr.Load() }

// Watch starts watching root for .baml/.json changes, rebuilding the IR
// on each settled change and swapping it into the returned Live. onReload,
// if non-nil, is invoked with each successfully rebuilt Runtime.
func (rt *Runtime) Watch(ctx context.Context, root string, onReload func(*Runtime)) (*Live, *Watcher, error) {
	live := &Live{}
	live.ptr.Store(rt)

	w, err := NewWatcher(root, rt.env)
	if err != nil {
		return nil, nil, err
	}
	w.Watch(ctx, func(next *Runtime) {
		live.ptr.Store(next)
		if onReload != nil {
			onReload(next)
		}
	})
	return live, w, nil
}

// Watcher debounces filesystem change events under a baml_src root and
// rebuilds a fresh Runtime on settled changes, handing it to onReload.
// The original Runtime this watcher was built from is never mutated;
// callers that want the latest build should read from onReload's result.
type Watcher struct {
	root     string
	env      map[string]string
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher builds a Watcher over root, recursively adding every
// directory that exists under root at construction time. Directories
// created later are not added, so changes inside them do not trigger a
// rebuild.
func NewWatcher(root string, env map[string]string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     root,
		env:      env,
		fsw:      fsw,
		debounce: 300 * time.Millisecond,
		pending:  map[string]time.Time{},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if err := w.addDirs(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addDirs(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

// Watch starts the debounced event loop in a goroutine, calling onReload
// with each successfully rebuilt Runtime. A build that fails (diagnostics
// with errors) is logged and skipped; onReload is only called on success.
func (w *Watcher) Watch(ctx context.Context, onReload func(*Runtime)) {
	go w.run(ctx, onReload)
}

func (w *Watcher) run(ctx context.Context, onReload func(*Runtime)) {
	defer close(w.doneCh)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("runtime watcher error", "err", err)
		case <-ticker.C:
			w.flushSettled(onReload)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	ext := strings.ToLower(filepath.Ext(event.Name))
	if ext != ".baml" && ext != ".json" {
		return
	}
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flushSettled(onReload func(*Runtime)) {
	w.mu.Lock()
	now := time.Now()
	settled := false
	for _, t := range w.pending {
		if now.Sub(t) >= w.debounce {
			settled = true
		}
	}
	if settled {
		w.pending = map[string]time.Time{}
	}
	w.mu.Unlock()
	if !settled {
		return
	}

	rt, diags := FromDirectory(w.root, w.env)
	if diags != nil && diags.HasErrors() {
		slog.Warn("runtime watcher: rebuild failed", "errors", len(diags.Errors))
		return
	}
	onReload(rt)
}

// Stop halts the watch loop and releases the underlying fsnotify handle.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.fsw.Close()
}
