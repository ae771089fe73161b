// Package config loads agentpm configuration from yaml files with
// project-over-user precedence, environment overrides, and hot reload.
// The active config is swapped atomically; readers always see a complete
// snapshot.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/adalundhe/agentpm/core/storage"
)

// Config is the full agentpm configuration tree.
type Config struct {
	Profiles ProfilesConfig `yaml:"profiles"`
	Cache    CacheConfig    `yaml:"cache"`
	Training TrainingConfig `yaml:"training"`
	History  HistoryConfig  `yaml:"history"`
}

// ProfilesConfig locates the three profile tiers.
type ProfilesConfig struct {
	ProjectDir string `yaml:"project_dir"`
	UserDir    string `yaml:"user_dir"`
	SystemDir  string `yaml:"system_dir"`
}

// CacheConfig tunes the shared prompt cache.
type CacheConfig struct {
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

// TrainingConfig locates improved-prompt records.
type TrainingConfig struct {
	Dir      string        `yaml:"dir"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// HistoryConfig tunes the request history.
type HistoryConfig struct {
	Size int `yaml:"size"`
	// AuditDB is a sqlite path for the durable audit sink; empty disables it.
	AuditDB string `yaml:"audit_db"`
}

// DefaultConfig returns the defaults for the current platform and working
// directory.
func DefaultConfig() *Config {
	dirs := storage.ResolveDirs()
	project := storage.ResolveProjectDirs(".")
	return &Config{
		Profiles: ProfilesConfig{
			ProjectDir: project.Agents,
			UserDir:    dirs.UserAgentsDir(),
			SystemDir:  dirs.SystemAgentsDir(),
		},
		Cache: CacheConfig{
			Capacity: 500,
			TTL:      30 * time.Minute,
		},
		Training: TrainingConfig{
			Dir:      dirs.TrainingDir(),
			CacheTTL: 15 * time.Minute,
		},
		History: HistoryConfig{
			Size: 100,
		},
	}
}

// Manager owns the active config and its reload lifecycle.
type Manager struct {
	current   atomic.Pointer[Config]
	watchers  []func(*Config)
	watcherMu sync.RWMutex
	logger    *slog.Logger

	fsWatcher *fsnotify.Watcher
	stopWatch chan struct{}
	watchOnce sync.Once
	closeOnce sync.Once
}

// NewManager creates a manager holding defaults until Load is called.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{logger: logger, stopWatch: make(chan struct{})}
	m.current.Store(DefaultConfig())
	return m
}

// Get returns the active config snapshot. Never nil.
func (m *Manager) Get() *Config {
	return m.current.Load()
}

// Load builds a fresh config: defaults, then user config.yaml, then the
// project-local .agentpm/config.yaml, then environment overrides.
func (m *Manager) Load() error {
	cfg := DefaultConfig()

	userPath := storage.ResolveDirs().ConfigPath("config.yaml")
	if err := loadYAMLFile(userPath, cfg); err != nil {
		return fmt.Errorf("user config: %w", err)
	}

	projectPath := storage.ResolveProjectDirs(".").Config
	if err := loadYAMLFile(projectPath, cfg); err != nil {
		return fmt.Errorf("project config: %w", err)
	}

	applyEnvironment(cfg)

	m.current.Store(cfg)
	m.notifyWatchers(cfg)
	return nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvironment(cfg *Config) {
	if v := os.Getenv("AGENTPM_PROJECT_AGENTS"); v != "" {
		cfg.Profiles.ProjectDir = v
	}
	if v := os.Getenv("AGENTPM_USER_AGENTS"); v != "" {
		cfg.Profiles.UserDir = v
	}
	if v := os.Getenv("AGENTPM_SYSTEM_AGENTS"); v != "" {
		cfg.Profiles.SystemDir = v
	}
	if v := os.Getenv("AGENTPM_TRAINING_DIR"); v != "" {
		cfg.Training.Dir = v
	}
	if v := os.Getenv("AGENTPM_CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Cache.Capacity = n
		}
	}
	if v := os.Getenv("AGENTPM_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Cache.TTL = d
		}
	}
	if v := os.Getenv("AGENTPM_HISTORY_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.History.Size = n
		}
	}
	if v := os.Getenv("AGENTPM_AUDIT_DB"); v != "" {
		cfg.History.AuditDB = v
	}
}

// OnChange registers a callback invoked after every successful Load.
func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

// Watch reloads the config when either config file changes on disk.
// Starts at most one watcher goroutine.
func (m *Manager) Watch() error {
	var startErr error
	m.watchOnce.Do(func() {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			startErr = err
			return
		}
		m.fsWatcher = fw

		for _, dir := range []string{
			storage.ResolveDirs().Config,
			storage.ResolveProjectDirs(".").Root,
		} {
			if err := fw.Add(dir); err != nil {
				m.logger.Debug("config directory not watchable", "dir", dir, "error", err)
			}
		}
		go m.watchLoop()
	})
	return startErr
}

func (m *Manager) watchLoop() {
	for {
		select {
		case <-m.stopWatch:
			return
		case event, ok := <-m.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := m.Load(); err != nil {
				m.logger.Warn("config reload failed", "error", err)
			} else {
				m.logger.Info("config reloaded", "trigger", event.Name)
			}
		case err, ok := <-m.fsWatcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("config watcher error", "error", err)
		}
	}
}

// Close stops the watcher, if running.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() { close(m.stopWatch) })
	if m.fsWatcher != nil {
		return m.fsWatcher.Close()
	}
	return nil
}
