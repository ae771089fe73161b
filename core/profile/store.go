package profile

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotFound is matched by errors.Is for any per-tier lookup miss.
var ErrNotFound = errors.New("agent profile not found")

// NotFoundError reports a miss at one tier, with the paths searched.
type NotFoundError struct {
	Agent    string
	Tier     Tier
	Searched []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("agent profile %q not found at %s tier (searched %s)",
		e.Agent, e.Tier, strings.Join(e.Searched, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// defaultMemoSize bounds the parsed-profile memo table. Profiles are small;
// this comfortably covers every agent across all tiers.
const defaultMemoSize = 256

// Store loads agent profiles from per-tier directories. Loads are pure
// filesystem reads; a (path, mtime)-keyed memo table avoids re-parsing
// unchanged documents but is invisible to callers.
type Store struct {
	paths  map[Tier]string
	memo   *lru.Cache[string, memoEntry]
	logger *slog.Logger
}

type memoEntry struct {
	modTime time.Time
	size    int64
	profile *Profile
}

// StoreConfig configures a profile store.
type StoreConfig struct {
	// TierPaths maps each tier to its profile directory. Missing tiers are
	// simply never satisfied.
	TierPaths map[Tier]string

	// MemoSize bounds the parse memo; 0 uses the default.
	MemoSize int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewStore creates a profile store over the given tier directories.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.MemoSize <= 0 {
		cfg.MemoSize = defaultMemoSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	memo, err := lru.New[string, memoEntry](cfg.MemoSize)
	if err != nil {
		return nil, fmt.Errorf("creating profile memo: %w", err)
	}
	paths := make(map[Tier]string, len(cfg.TierPaths))
	for tier, dir := range cfg.TierPaths {
		paths[tier] = dir
	}
	return &Store{paths: paths, memo: memo, logger: cfg.Logger}, nil
}

// TierPath returns the directory configured for a tier, if any.
func (s *Store) TierPath(tier Tier) (string, bool) {
	dir, ok := s.paths[tier]
	return dir, ok
}

// candidateFilenames lists the accepted naming conventions for an agent's
// profile document, in preference order.
func candidateFilenames(agent string) []string {
	return []string{
		agent + ".md",
		agent + "-agent.md",
		agent + "_agent.md",
		agent + "-profile.md",
	}
}

// Load reads and parses the profile for an agent at a single tier.
// Returns *NotFoundError when no document exists there, and *ParseError
// when a document exists but lacks required sections.
func (s *Store) Load(agentName string, tier Tier) (*Profile, error) {
	agent := NormalizeName(agentName)
	dir, ok := s.paths[tier]
	if !ok || dir == "" {
		return nil, &NotFoundError{Agent: agent, Tier: tier}
	}

	var searched []string
	for _, filename := range candidateFilenames(agent) {
		path := filepath.Join(dir, filename)
		info, err := os.Stat(path)
		if err != nil {
			searched = append(searched, path)
			continue
		}
		return s.loadFile(agent, tier, path, info)
	}
	return nil, &NotFoundError{Agent: agent, Tier: tier, Searched: searched}
}

func (s *Store) loadFile(agent string, tier Tier, path string, info os.FileInfo) (*Profile, error) {
	memoKey := string(tier) + ":" + path
	if cached, ok := s.memo.Get(memoKey); ok {
		if cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
			return cached.profile, nil
		}
		s.memo.Remove(memoKey)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}

	sum := sha256.Sum256(raw)
	p := &Profile{
		Name:         agent,
		Tier:         tier,
		SourcePath:   path,
		ContentHash:  hex.EncodeToString(sum[:]),
		LastModified: info.ModTime(),
		Raw:          string(raw),
	}
	if err := parseDocument(p.Raw, p); err != nil {
		return nil, err
	}

	s.memo.Add(memoKey, memoEntry{modTime: info.ModTime(), size: info.Size(), profile: p})
	s.logger.Debug("loaded agent profile",
		"agent", agent, "tier", tier, "path", path, "hash", p.ContentHash[:12])
	return p, nil
}

// ListTier parses every profile document in one tier directory. Documents
// that fail to parse are skipped with a warning.
func (s *Store) ListTier(tier Tier) ([]*Profile, error) {
	dir, ok := s.paths[tier]
	if !ok || dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s tier: %w", tier, err)
	}

	var profiles []*Profile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		name := NormalizeName(strings.TrimSuffix(entry.Name(), ".md"))
		p, err := s.Load(name, tier)
		if err != nil {
			s.logger.Warn("skipping unparseable profile",
				"tier", tier, "file", entry.Name(), "error", err)
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}
