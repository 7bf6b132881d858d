package watcher

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"imagekit/src/config"
)

const defaultDebounce = 500 * time.Millisecond

// RebuildFunc is called once per burst of changes with the changed paths
type RebuildFunc func(changed []string) error

// Watcher monitors the content and public directories and triggers
// rebuilds when pages or source images change
type Watcher struct {
	cfg      *config.Config
	watcher  *fsnotify.Watcher
	events   chan Event
	rebuild  RebuildFunc
	debounce time.Duration

	// held for the whole rebuild so bursts never build concurrently
	rebuildMu sync.Mutex

	mu      sync.Mutex
	pending map[string]EventType
	timer   *time.Timer
	stopped bool
}

// Event represents a file system event
type Event struct {
	Type     EventType
	FilePath string
}

// EventType represents the type of file event
type EventType int

const (
	EventCreated EventType = iota
	EventModified
	EventDeleted
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	}
	return "unknown"
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".svg":  true,
	".avif": true,
	".tif":  true,
	".tiff": true,
}

// NewWatcher creates a new file watcher
func NewWatcher(cfg *config.Config, rebuild RebuildFunc) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		cfg:      cfg,
		watcher:  fsWatcher,
		events:   make(chan Event, 100),
		rebuild:  rebuild,
		debounce: defaultDebounce,
		pending:  make(map[string]EventType),
	}, nil
}

// Start begins monitoring the content and public directories
func (w *Watcher) Start() error {
	for _, dir := range []string{w.cfg.Site.ContentDir, w.cfg.Site.PublicDir} {
		if err := w.addRecursive(dir); err != nil {
			return err
		}
		slog.Info("watching folder", "path", dir)
	}

	go w.processEvents()
	return nil
}

// addRecursive watches dir and every non-hidden directory below it
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch folder %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Skip temp files
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				slog.Warn("failed to watch new folder", "path", event.Name, "error", err)
			}
			return
		}
	}
	if !w.relevant(event.Name) {
		return
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventCreated
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventModified
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		eventType = EventDeleted
	default:
		return
	}
	slog.Debug("file changed", "path", event.Name, "type", eventType)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if _, seen := w.pending[event.Name]; !seen || eventType != EventModified {
		w.pending[event.Name] = eventType
	}
	// Debounce: wait for the burst to settle before rebuilding
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

// relevant reports whether a change to path affects the build output
func (w *Watcher) relevant(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".md" && within(w.cfg.Site.ContentDir, path) {
		return true
	}
	return imageExtensions[ext] && within(w.cfg.Site.PublicDir, path)
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// flush waits for a running rebuild to finish, then rebuilds with every
// change collected so far
func (w *Watcher) flush() {
	w.rebuildMu.Lock()
	defer w.rebuildMu.Unlock()

	w.mu.Lock()
	if w.stopped || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.pending))
	for path, eventType := range w.pending {
		changed = append(changed, path)
		select {
		case w.events <- Event{Type: eventType, FilePath: path}:
		default:
			slog.Warn("event channel full, dropping event", "path", path)
		}
	}
	w.pending = make(map[string]EventType)
	w.mu.Unlock()

	sort.Strings(changed)
	if w.rebuild == nil {
		return
	}
	slog.Info("rebuilding", "changed", len(changed))
	if err := w.rebuild(changed); err != nil {
		slog.Error("rebuild failed", "error", err)
	}
}

// Events returns the event channel
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.events)
	w.mu.Unlock()
	return w.watcher.Close()
}
