package mirror

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/harun/fiftplay/internal/observability"
	"github.com/harun/fiftplay/pkg/linkcodec"
	"github.com/harun/fiftplay/pkg/playground"
	"github.com/rs/zerolog"
)

// MaxFileSize is the largest file loaded into a workspace
const MaxFileSize = 1 << 20

var (
	// ErrUnsafePath is returned when a filename would escape the target directory
	ErrUnsafePath = errors.New("filename escapes target directory")

	// ErrNotDirectory is returned when the mirror root is not a directory
	ErrNotDirectory = errors.New("not a directory")
)

// Config configures a Mirror
type Config struct {
	Root               string
	StabilityThreshold time.Duration
	Logger             zerolog.Logger
}

// Mirror keeps a store in step with a directory on disk. Files are keyed by
// their slash-separated path relative to the root.
type Mirror struct {
	root               string
	stabilityThreshold time.Duration
	logger             zerolog.Logger

	mu      sync.Mutex
	watcher *Watcher
}

// New creates a mirror of root
func New(config Config) (*Mirror, error) {
	root, err := filepath.Abs(config.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", config.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}

	return &Mirror{
		root:               root,
		stabilityThreshold: config.StabilityThreshold,
		logger:             config.Logger.With().Str("component", "mirror").Str("root", root).Logger(),
	}, nil
}

// Root returns the absolute mirrored directory
func (m *Mirror) Root() string {
	return m.root
}

// LoadEntries reads every file under dir, sorted by relative path.
// Ignored paths, oversized files and files that are not UTF-8 text are
// skipped.
func LoadEntries(dir string) ([]linkcodec.Entry, error) {
	var entries []linkcodec.Entry

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if shouldIgnore(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		code, ok, err := readText(path, info)
		if err != nil {
			return err
		}
		if ok {
			entries = append(entries, linkcodec.Entry{Filename: filepath.ToSlash(rel), Code: code})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Filename < entries[j].Filename
	})
	return entries, nil
}

func readText(path string, info os.FileInfo) (string, bool, error) {
	if info.Size() > MaxFileSize {
		return "", false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", false, nil
	}
	return string(data), true, nil
}

// NewStore creates a store holding the files of the mirrored directory. An
// empty directory gives the welcome workspace.
func (m *Mirror) NewStore() (*playground.Store, error) {
	entries, err := LoadEntries(m.root)
	if err != nil {
		return nil, err
	}

	opts := playground.StoreOptions{}
	if len(entries) > 0 {
		link, err := linkcodec.Marshal(entries)
		if err != nil {
			return nil, err
		}
		opts.SerializedState = link
	}

	store, err := playground.NewStore(opts)
	if err != nil {
		return nil, err
	}

	m.logger.Info().Int("files", len(entries)).Msg("Directory loaded")
	return store, nil
}

// Watch starts applying directory changes to store until Stop
func (m *Mirror) Watch(store *playground.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watcher != nil {
		return fmt.Errorf("mirror of %s is already watching", m.root)
	}

	watcher, err := NewWatcher(WatcherConfig{
		Root:               m.root,
		StabilityThreshold: m.stabilityThreshold,
		OnWrite: func(path string) error {
			return m.applyWrite(store, path)
		},
		OnRemove: func(path string) error {
			return m.applyRemove(store, path)
		},
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		_ = watcher.Stop()
		return err
	}

	m.watcher = watcher
	return nil
}

// Stop stops watching
func (m *Mirror) Stop() error {
	m.mu.Lock()
	watcher := m.watcher
	m.watcher = nil
	m.mu.Unlock()

	if watcher == nil {
		return nil
	}
	return watcher.Stop()
}

func (m *Mirror) filename(path string) (string, error) {
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func (m *Mirror) applyWrite(store *playground.Store, path string) error {
	filename, err := m.filename(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	code, ok, err := readText(path, info)
	if err != nil {
		return err
	}
	if !ok {
		m.logger.Debug().Str("filename", filename).Msg("Skipping non-text or oversized file")
		return nil
	}

	if current, found := store.Code(filename); found {
		if current == code {
			return nil
		}
		observability.RecordMirrorEvent("update")
		return store.UpdateCode(filename, code)
	}

	observability.RecordMirrorEvent("add")
	m.logger.Debug().Str("filename", filename).Msg("File appeared")
	return store.AddFile(playground.NewFile(filename, code, false))
}

// applyRemove drops the file at path. A path that names no file is taken
// as a directory that went away, and every file below it is dropped.
func (m *Mirror) applyRemove(store *playground.Store, path string) error {
	filename, err := m.filename(path)
	if err != nil {
		return err
	}
	if _, found := store.File(filename); found {
		return m.removeFile(store, filename)
	}

	prefix := filename + "/"
	for _, name := range store.FileNames() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if err := m.removeFile(store, name); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mirror) removeFile(store *playground.Store, filename string) error {
	pending, err := store.RequestDelete(filename)
	if err != nil {
		return err
	}
	observability.RecordMirrorEvent("remove")
	m.logger.Debug().Str("filename", filename).Msg("File removed")
	return store.ConfirmDelete(pending.ID)
}

// Export writes every workspace file below dir, creating directories as
// needed. Filenames that would leave dir are rejected before anything is
// written.
func Export(files []linkcodec.Entry, dir string) error {
	for _, file := range files {
		if !filepath.IsLocal(filepath.FromSlash(file.Filename)) {
			return fmt.Errorf("%q: %w", file.Filename, ErrUnsafePath)
		}
	}

	for _, file := range files {
		target := filepath.Join(dir, filepath.FromSlash(file.Filename))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", file.Filename, err)
		}
		if err := os.WriteFile(target, []byte(file.Code), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Filename, err)
		}
	}
	return nil
}
