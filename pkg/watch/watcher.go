// Package watch re-runs registry validation whenever a manifest changes.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ManifestExt is the extension of every file that can change a run's outcome.
const ManifestExt = ".toml"

// ChangeCallback is called once per burst of changes with the last path
// that changed. Calls never overlap.
type ChangeCallback func(path string)

// RegistryWatcher monitors a registry checkout for manifest changes
type RegistryWatcher struct {
	watcher            *fsnotify.Watcher
	root               string
	stabilityThreshold time.Duration
	onChange           ChangeCallback
	logger             zerolog.Logger

	done      chan struct{}
	stopOnce  sync.Once
	debounce  *time.Timer
	lastPath  string
	pendingMu sync.Mutex
	runMu     sync.Mutex
}

// Config holds configuration for the watcher
type Config struct {
	Root               string
	StabilityThreshold time.Duration
	OnChange           ChangeCallback
}

// NewRegistryWatcher creates a new registry watcher
func NewRegistryWatcher(cfg Config, logger zerolog.Logger) (*RegistryWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if cfg.StabilityThreshold == 0 {
		cfg.StabilityThreshold = 200 * time.Millisecond
	}

	return &RegistryWatcher{
		watcher:            watcher,
		root:               filepath.Clean(cfg.Root),
		stabilityThreshold: cfg.StabilityThreshold,
		onChange:           cfg.OnChange,
		logger:             logger.With().Str("component", "registry-watcher").Logger(),
		done:               make(chan struct{}),
	}, nil
}

// Start starts watching the registry root
func (w *RegistryWatcher) Start() error {
	if err := w.addDirectoryRecursive(w.root); err != nil {
		return fmt.Errorf("failed to watch registry: %w", err)
	}

	go w.eventLoop()

	w.logger.Info().
		Str("path", w.root).
		Msg("Registry watcher started")

	return nil
}

// Stop stops the watcher and waits for an in-flight callback to return
func (w *RegistryWatcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.pendingMu.Lock()
	if w.debounce != nil {
		w.debounce.Stop()
		w.debounce = nil
	}
	w.pendingMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.runMu.Lock()
	defer w.runMu.Unlock()

	w.logger.Info().Msg("Registry watcher stopped")
	return nil
}

// eventLoop processes file system events
func (w *RegistryWatcher) eventLoop() {
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
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

// handleEvent filters an event and schedules a re-run
func (w *RegistryWatcher) handleEvent(event fsnotify.Event) {
	if w.shouldIgnore(event.Name) {
		return
	}

	// New folders, e.g. a new plugin version, must be watched too
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addDirectoryRecursive(event.Name)
			w.schedule(event.Name)
			return
		}
	}

	if filepath.Ext(event.Name) != ManifestExt {
		return
	}
	w.schedule(event.Name)
}

// schedule debounces a burst of events into one callback
func (w *RegistryWatcher) schedule(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.lastPath = path
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.stabilityThreshold, w.fire)
}

func (w *RegistryWatcher) fire() {
	w.pendingMu.Lock()
	path := w.lastPath
	w.debounce = nil
	w.pendingMu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}

	w.runMu.Lock()
	defer w.runMu.Unlock()

	w.logger.Debug().Str("path", path).Msg("Registry changed")
	if w.onChange != nil {
		w.onChange(path)
	}
}

// addDirectoryRecursive adds a directory and all its subdirectories to the watcher
func (w *RegistryWatcher) addDirectoryRecursive(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.shouldIgnore(walkPath) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(walkPath); err != nil {
			w.logger.Warn().
				Err(err).
				Str("path", walkPath).
				Msg("Failed to watch path")
		}
		return nil
	})
}

// shouldIgnore reports whether path lies in a hidden file or folder below
// the registry root, e.g. .git
func (w *RegistryWatcher) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}

	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
