package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 500, cfg.Cache.Capacity)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 15*time.Minute, cfg.Training.CacheTTL)
	assert.Equal(t, 100, cfg.History.Size)
	assert.Empty(t, cfg.History.AuditDB)

	assert.NotEmpty(t, cfg.Profiles.ProjectDir)
	assert.NotEmpty(t, cfg.Profiles.UserDir)
	assert.NotEmpty(t, cfg.Profiles.SystemDir)
	assert.NotEmpty(t, cfg.Training.Dir)
}

func TestManagerHoldsDefaultsBeforeLoad(t *testing.T) {
	m := NewManager(nil)
	t.Cleanup(func() { m.Close() })

	cfg := m.Get()
	require.NotNil(t, cfg)
	assert.Equal(t, 500, cfg.Cache.Capacity)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func writeProjectConfig(t *testing.T, body string) {
	t.Helper()
	chdir(t, t.TempDir())
	require.NoError(t, os.MkdirAll(".agentpm", 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(".agentpm", "config.yaml"), []byte(body), 0o644))
}

func TestLoadProjectConfig(t *testing.T) {
	writeProjectConfig(t, `
cache:
  capacity: 42
  ttl: 5m
history:
  size: 7
  audit_db: /tmp/audit.db
`)
	m := NewManager(nil)
	t.Cleanup(func() { m.Close() })
	require.NoError(t, m.Load())

	cfg := m.Get()
	assert.Equal(t, 42, cfg.Cache.Capacity)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 7, cfg.History.Size)
	assert.Equal(t, "/tmp/audit.db", cfg.History.AuditDB)

	// Untouched sections keep their defaults.
	assert.Equal(t, 15*time.Minute, cfg.Training.CacheTTL)
}

func TestLoadInvalidYAML(t *testing.T) {
	writeProjectConfig(t, "cache: [not a map\n")
	m := NewManager(nil)
	t.Cleanup(func() { m.Close() })

	require.Error(t, m.Load())
	// The active snapshot is untouched by a failed load.
	assert.Equal(t, 500, m.Get().Cache.Capacity)
}

func TestEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AGENTPM_CACHE_CAPACITY", "64")
	t.Setenv("AGENTPM_CACHE_TTL", "2m")
	t.Setenv("AGENTPM_TRAINING_DIR", "/srv/training")
	t.Setenv("AGENTPM_PROJECT_AGENTS", "/srv/agents")

	m := NewManager(nil)
	t.Cleanup(func() { m.Close() })
	require.NoError(t, m.Load())

	cfg := m.Get()
	assert.Equal(t, 64, cfg.Cache.Capacity)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "/srv/training", cfg.Training.Dir)
	assert.Equal(t, "/srv/agents", cfg.Profiles.ProjectDir)
}

func TestEnvironmentBeatsProjectFile(t *testing.T) {
	writeProjectConfig(t, "cache:\n  capacity: 42\n")
	t.Setenv("AGENTPM_CACHE_CAPACITY", "99")

	m := NewManager(nil)
	t.Cleanup(func() { m.Close() })
	require.NoError(t, m.Load())

	assert.Equal(t, 99, m.Get().Cache.Capacity)
}

func TestEnvironmentIgnoresMalformedValues(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AGENTPM_CACHE_CAPACITY", "not-a-number")
	t.Setenv("AGENTPM_CACHE_TTL", "-5m")

	m := NewManager(nil)
	t.Cleanup(func() { m.Close() })
	require.NoError(t, m.Load())

	cfg := m.Get()
	assert.Equal(t, 500, cfg.Cache.Capacity)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
}

func TestOnChange(t *testing.T) {
	chdir(t, t.TempDir())
	m := NewManager(nil)
	t.Cleanup(func() { m.Close() })

	var seen []*Config
	m.OnChange(func(cfg *Config) { seen = append(seen, cfg) })

	require.NoError(t, m.Load())
	require.Len(t, seen, 1)
	assert.Same(t, m.Get(), seen[0])
}
