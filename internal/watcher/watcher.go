// Package watcher flags external modifications to workspace files a run
// cares about. It watches the workspace tree with fsnotify and publishes
// a file.external_change event when a file a session has touched or
// locked is modified by something other than the agent's own tools, for
// example an editor or another process.
//
// The watcher learns which files matter by subscribing to file.changed
// and lock.acquired events, and it suppresses the filesystem echo of the
// agent's own writes through a short grace window.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/TannerBurns/termai/internal/event"
	"github.com/TannerBurns/termai/internal/logging"
)

const (
	// debounceInterval batches the burst of events editors emit for a
	// single save.
	debounceInterval = 50 * time.Millisecond
	// selfChangeWindow is how long after an agent-side write the
	// filesystem echo of that write is ignored.
	selfChangeWindow = 2 * time.Second
)

// ignoreNames are directory and file names never worth flagging.
var ignoreNames = []string{".git", "node_modules", ".DS_Store"}

// Watcher observes the workspace for external file modifications.
type Watcher struct {
	fsw    *fsnotify.Watcher
	bus    *event.Bus
	logger *logging.Logger
	root   string

	mu      sync.RWMutex
	tracked map[string]map[string]struct{} // absolute path -> sessions tracking it
	selfOps map[string]time.Time           // recent agent-side writes, for echo suppression

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a watcher over the workspace root. The root must be an
// existing directory. When a bus is given the watcher subscribes to
// file.changed and lock.acquired so tracked paths accumulate without
// explicit Track calls.
func New(root string, bus *event.Bus, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("workspace path does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace path is not a directory: %s", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}

	w := &Watcher{
		fsw:     fsw,
		bus:     bus,
		logger:  logger.With("component", "watcher"),
		root:    root,
		tracked: make(map[string]map[string]struct{}),
		selfOps: make(map[string]time.Time),
		stopCh:  make(chan struct{}),
	}
	if bus != nil {
		bus.Subscribe("file.changed", w.onAgentChange)
		bus.Subscribe("lock.acquired", w.onLockAcquired)
	}
	return w, nil
}

// Start watches the workspace tree and begins processing events.
func (w *Watcher) Start() error {
	if err := w.watchDirRecursive(w.root); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.fsw.Close()
	})
}

// Track marks a path as belonging to a session, so external changes to
// it are flagged.
func (w *Watcher) Track(path, sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.trackLocked(path, sessionID)
}

func (w *Watcher) trackLocked(path, sessionID string) {
	if w.tracked[path] == nil {
		w.tracked[path] = make(map[string]struct{})
	}
	w.tracked[path][sessionID] = struct{}{}
}

// ReleaseSession drops all paths tracked for a session. Called when a
// run finishes or is cancelled.
func (w *Watcher) ReleaseSession(sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, sessions := range w.tracked {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(w.tracked, path)
		}
	}
}

// TrackedPaths returns the paths tracked for a session, sorted.
func (w *Watcher) TrackedPaths(sessionID string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var paths []string
	for path, sessions := range w.tracked {
		if _, ok := sessions[sessionID]; ok {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// onAgentChange records a tool-driven write: the path becomes tracked
// for the session, and its imminent filesystem echo is suppressed.
func (w *Watcher) onAgentChange(e event.Event) {
	fc, ok := e.(event.FileChangedEvent)
	if !ok {
		return
	}
	w.mu.Lock()
	w.trackLocked(fc.Path, fc.SessionID)
	w.selfOps[fc.Path] = time.Now()
	w.mu.Unlock()
}

// onLockAcquired tracks locked paths. A merged acquisition means the
// coordinator wrote the file, so that echo is suppressed too.
func (w *Watcher) onLockAcquired(e event.Event) {
	la, ok := e.(event.LockAcquiredEvent)
	if !ok {
		return
	}
	w.mu.Lock()
	w.trackLocked(la.Path, la.SessionID)
	if la.Merged {
		w.selfOps[la.Path] = time.Now()
	}
	w.mu.Unlock()
}

// watchDirRecursive adds root and every non-ignored subdirectory to the
// fsnotify watch set.
func (w *Watcher) watchDirRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && slices.Contains(ignoreNames, d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// loop drains filesystem events, debouncing editor save bursts before
// flagging.
func (w *Watcher) loop() {
	debounce := time.NewTimer(0)
	<-debounce.C
	pending := make(map[string]struct{})

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					// New directory: extend the watch set instead.
					if !ignored(ev.Name) {
						_ = w.watchDirRecursive(ev.Name)
					}
					continue
				}
			}
			pending[ev.Name] = struct{}{}
			debounce.Reset(debounceInterval)

		case <-debounce.C:
			batch := pending
			pending = make(map[string]struct{})
			for path := range batch {
				w.flag(path)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// flag publishes an external-change event for every session tracking
// the path, unless the change is the echo of an agent-side write.
func (w *Watcher) flag(path string) {
	if ignored(path) {
		return
	}

	w.mu.Lock()
	if at, ok := w.selfOps[path]; ok {
		delete(w.selfOps, path)
		if time.Since(at) < selfChangeWindow {
			w.mu.Unlock()
			return
		}
	}
	var sessions []string
	for id := range w.tracked[path] {
		sessions = append(sessions, id)
	}
	w.mu.Unlock()

	if len(sessions) == 0 {
		return
	}
	sort.Strings(sessions)

	w.logger.Warn("external modification detected", "path", path, "sessions", len(sessions))
	if w.bus == nil {
		return
	}
	for _, id := range sessions {
		w.bus.Publish(event.NewExternalChangeEvent(id, path))
	}
}

func ignored(path string) bool {
	sep := string(filepath.Separator)
	for _, name := range ignoreNames {
		if filepath.Base(path) == name ||
			strings.Contains(path, sep+name+sep) ||
			strings.HasSuffix(path, sep+name) {
			return true
		}
	}
	return false
}
