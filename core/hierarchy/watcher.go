package hierarchy

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/adalundhe/agentpm/core/profile"
)

// Watcher observes tier directories and reports changed agents, so cached
// prompts derived from a stale profile can be invalidated without waiting
// for TTL expiry.
type Watcher struct {
	fs       *fsnotify.Watcher
	onChange func(agent string, tier profile.Tier)
	logger   *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewWatcher watches the given tier directories. onChange fires once per
// filesystem event that touches a profile document.
func NewWatcher(store *profile.Store, onChange func(agent string, tier profile.Tier), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:       fs,
		onChange: onChange,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, tier := range profile.TiersByPrecedence() {
		dir, ok := store.TierPath(tier)
		if !ok || dir == "" {
			continue
		}
		if err := fs.Add(dir); err != nil {
			// Tier directories may not exist yet; that is not fatal.
			logger.Debug("tier directory not watchable", "tier", tier, "dir", dir, "error", err)
		}
	}

	go w.run(store)
	return w, nil
}

func (w *Watcher) run(store *profile.Store) {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".md" {
				continue
			}
			agent := profile.NormalizeName(strings.TrimSuffix(filepath.Base(event.Name), ".md"))
			tier := tierForPath(store, event.Name)
			w.logger.Debug("profile document changed", "agent", agent, "tier", tier, "op", event.Op)
			if w.onChange != nil {
				w.onChange(agent, tier)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("profile watcher error", "error", err)
		}
	}
}

func tierForPath(store *profile.Store, path string) profile.Tier {
	dir := filepath.Dir(path)
	for _, tier := range profile.TiersByPrecedence() {
		tierDir, ok := store.TierPath(tier)
		if ok && tierDir == dir {
			return tier
		}
	}
	return ""
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	w.stopOnce.Do(func() { close(w.stop) })
	err := w.fs.Close()
	<-w.done
	return err
}
