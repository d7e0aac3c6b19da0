package mirror

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultStabilityThreshold is how long a path must stay quiet before its
// event is delivered
const DefaultStabilityThreshold = 100 * time.Millisecond

// PathCallback is called with the path of a settled file event
type PathCallback func(path string) error

// WatcherConfig holds configuration for the watcher
type WatcherConfig struct {
	Root               string
	StabilityThreshold time.Duration
	OnWrite            PathCallback // created or modified
	OnRemove           PathCallback // removed or renamed away
}

// Watcher monitors a directory tree and delivers debounced events
type Watcher struct {
	watcher            *fsnotify.Watcher
	root               string
	stabilityThreshold time.Duration
	onWrite            PathCallback
	onRemove           PathCallback
	done               chan struct{}
	debounceTimers     map[string]*time.Timer
	debounceMu         sync.Mutex
	stopOnce           sync.Once
}

// NewWatcher creates a new directory watcher
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if config.StabilityThreshold <= 0 {
		config.StabilityThreshold = DefaultStabilityThreshold
	}

	return &Watcher{
		watcher:            watcher,
		root:               config.Root,
		stabilityThreshold: config.StabilityThreshold,
		onWrite:            config.OnWrite,
		onRemove:           config.OnRemove,
		done:               make(chan struct{}),
		debounceTimers:     make(map[string]*time.Timer),
	}, nil
}

// Start watches the root and every subdirectory
func (w *Watcher) Start() error {
	if err := w.addDirectoryRecursive(w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}

	go w.eventLoop()

	log.Info().
		Str("path", w.root).
		Msg("Directory watcher started")

	return nil
}

// Stop stops the watcher. Pending events are dropped.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	clear(w.debounceTimers)
	w.debounceMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	log.Info().Str("path", w.root).Msg("Directory watcher stopped")
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if shouldIgnore(w.relative(event.Name)) {
				continue
			}
			w.debounceEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

// debounceEvent keeps only the last event of a burst on the same path
func (w *Watcher) debounceEvent(event fsnotify.Event) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debounceTimers[event.Name]; exists {
		timer.Stop()
	}

	eventCopy := event
	w.debounceTimers[event.Name] = time.AfterFunc(w.stabilityThreshold, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, eventCopy.Name)
		w.debounceMu.Unlock()

		select {
		case <-w.done:
			return
		default:
			w.processEvent(eventCopy)
		}
	})
}

func (w *Watcher) processEvent(event fsnotify.Event) {
	// The settled state of the path decides, not the op of the last event:
	// editors often write through a rename.
	info, err := os.Stat(event.Name)
	switch {
	case err != nil:
		w.call(w.onRemove, event.Name, "remove")
	case info.IsDir():
		if event.Op&fsnotify.Create == fsnotify.Create {
			_ = w.addDirectoryRecursive(event.Name)
			w.emitExisting(event.Name)
		}
	case info.Mode().IsRegular():
		w.call(w.onWrite, event.Name, "write")
	}
}

// emitExisting reports files already inside a directory that appeared
// after the watch started
func (w *Watcher) emitExisting(dir string) {
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if shouldIgnore(w.relative(path)) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode().IsRegular() {
			w.call(w.onWrite, path, "write")
		}
		return nil
	})
}

func (w *Watcher) call(callback PathCallback, path, op string) {
	if callback == nil {
		return
	}
	if err := callback(path); err != nil {
		log.Error().
			Err(err).
			Str("path", path).
			Str("op", op).
			Msg("Error handling file event")
	}
}

func (w *Watcher) addDirectoryRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if walkPath != w.root && shouldIgnore(w.relative(walkPath)) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(walkPath); err != nil {
			log.Warn().
				Err(err).
				Str("path", walkPath).
				Msg("Failed to watch path")
		}
		return nil
	})
}

func (w *Watcher) relative(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return rel
}

// shouldIgnore reports whether a path relative to the root is skipped:
// dotfiles and dot-directories, node_modules and .env variants
func shouldIgnore(rel string) bool {
	if rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(rel)), "/") {
		if part == "" {
			continue
		}
		if part[0] == '.' || part == "node_modules" {
			return true
		}
	}

	base := filepath.Base(rel)
	return strings.HasSuffix(base, ".env") || strings.Contains(base, ".env.")
}
