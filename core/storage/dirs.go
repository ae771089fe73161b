// Package storage provides platform-native directory resolution with XDG support.
package storage

import (
	"os"
	"path/filepath"
	"sync"
)

// Dirs provides platform-native directory resolution with XDG support.
type Dirs struct {
	Config string // User configuration (config.yaml)
	Data   string // Persistent data (user-tier agents, training records)
	Cache  string // Regenerable cache
	State  string // Runtime state (request audit log)
}

// ProjectDirs returns project-local directories.
type ProjectDirs struct {
	Root   string // .agentpm/
	Agents string // .agentpm/agents/ (project-tier profiles)
	Config string // .agentpm/config.yaml
}

var (
	globalDirs     *Dirs
	globalDirsOnce sync.Once
)

// ResolveDirs returns platform-appropriate directories.
// Results are cached after first call.
func ResolveDirs() *Dirs {
	globalDirsOnce.Do(func() {
		globalDirs = resolveDirsImpl()
	})
	return globalDirs
}

func resolveDirsImpl() *Dirs {
	return &Dirs{
		Config: resolveDir("XDG_CONFIG_HOME", platformConfigDefault()),
		Data:   resolveDir("XDG_DATA_HOME", platformDataDefault()),
		Cache:  resolveDir("XDG_CACHE_HOME", platformCacheDefault()),
		State:  resolveDir("XDG_STATE_HOME", platformStateDefault()),
	}
}

func resolveDir(envVar, fallback string) string {
	if dir := os.Getenv(envVar); dir != "" {
		return filepath.Join(dir, "agentpm")
	}
	return fallback
}

// ConfigPath joins parts under the user config directory.
func (d *Dirs) ConfigPath(parts ...string) string {
	return filepath.Join(append([]string{d.Config}, parts...)...)
}

// DataPath joins parts under the user data directory.
func (d *Dirs) DataPath(parts ...string) string {
	return filepath.Join(append([]string{d.Data}, parts...)...)
}

// StatePath joins parts under the user state directory.
func (d *Dirs) StatePath(parts ...string) string {
	return filepath.Join(append([]string{d.State}, parts...)...)
}

// UserAgentsDir is where user-tier agent profiles live.
func (d *Dirs) UserAgentsDir() string {
	return d.DataPath("agents")
}

// SystemAgentsDir is where system-tier (stock) agent profiles are installed.
// AGENTPM_SYSTEM_AGENTS overrides the default for packaged deployments.
func (d *Dirs) SystemAgentsDir() string {
	if dir := os.Getenv("AGENTPM_SYSTEM_AGENTS"); dir != "" {
		return dir
	}
	return d.DataPath("system-agents")
}

// TrainingDir holds improved-prompt records produced by the training process.
func (d *Dirs) TrainingDir() string {
	return d.DataPath("training", "agent-prompts")
}

// ResolveProjectDirs returns project-local directories for the given project root.
func ResolveProjectDirs(projectRoot string) *ProjectDirs {
	root := filepath.Join(projectRoot, ".agentpm")
	return &ProjectDirs{
		Root:   root,
		Agents: filepath.Join(root, "agents"),
		Config: filepath.Join(root, "config.yaml"),
	}
}

// EnsureDir creates a directory with the specified permissions if it doesn't exist.
func EnsureDir(path string, perm os.FileMode) error {
	if perm == 0 {
		perm = 0o700
	}
	return os.MkdirAll(path, perm)
}

// EnsureStandardDir creates a directory with standard permissions (0755).
func EnsureStandardDir(path string) error {
	return EnsureDir(path, 0o755)
}
