package training

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/ristretto"
)

const (
	defaultNumCounters = 1e4 // admission policy counters; record sets are small
	defaultMaxCost     = 1e7 // 10MB of cached records
	defaultBufferItems = 64
	defaultTTL         = 15 * time.Minute
)

// ErrRecordNotFound is returned by Deploy when no record matches.
var ErrRecordNotFound = errors.New("training record not found")

// CorruptRecordError reports that records exist for an agent type but none
// could be decoded. Callers degrade to the base profile; this is never fatal.
type CorruptRecordError struct {
	AgentType string
	Paths     []string
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("improved prompt records for %q are unreadable (%d files)",
		e.AgentType, len(e.Paths))
}

// Store reads improved-prompt records from a directory of JSON files named
// <agent_type>_<session_id>.json. Lookups are cached with a short TTL since
// the underlying records only change when the training process writes.
type Store struct {
	dir    string
	cache  *ristretto.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// StoreConfig configures a training record store.
type StoreConfig struct {
	// Dir is the records directory. Created lazily on first Save.
	Dir string

	// CacheTTL bounds lookup cache staleness; 0 uses the default.
	CacheTTL time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewStore creates a training record store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: defaultNumCounters,
		MaxCost:     defaultMaxCost,
		BufferItems: defaultBufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("creating training record cache: %w", err)
	}
	return &Store{dir: cfg.Dir, cache: cache, ttl: cfg.CacheTTL, logger: cfg.Logger}, nil
}

// FindBest returns the deployment-ready record with the highest improvement
// score for an agent type, or nil when none is ready. Score ties go to the
// lexicographically greatest training session id; session ids carry a
// timestamp prefix, so that is "most recent wins" in practice and is
// deterministic regardless.
//
// A *CorruptRecordError is returned only when records exist for the agent
// type but every one of them is unreadable.
func (s *Store) FindBest(agentType string) (*ImprovedPrompt, error) {
	if cached, ok := s.cache.Get(agentType); ok {
		if best, ok := cached.(*ImprovedPrompt); ok {
			return best, nil
		}
	}

	best, sawReadable, corrupt, err := s.scan(agentType)
	if err != nil {
		return nil, err
	}
	if best == nil && !sawReadable && len(corrupt) > 0 {
		return nil, &CorruptRecordError{AgentType: agentType, Paths: corrupt}
	}
	if best != nil {
		s.cache.SetWithTTL(agentType, best, recordCost(best), s.ttl)
	}
	return best, nil
}

// scan walks the records directory once. sawReadable reports whether any
// readable record (ready or not) exists for the agent type; corrupt lists
// undecodable files, whose agent type is unknowable.
func (s *Store) scan(agentType string) (best *ImprovedPrompt, sawReadable bool, corrupt []string, err error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil, nil
	}
	if err != nil {
		return nil, false, nil, fmt.Errorf("scanning training records: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		record, decodeErr := decodeRecord(path)
		if decodeErr != nil {
			s.logger.Warn("skipping corrupt training record", "path", path, "error", decodeErr)
			corrupt = append(corrupt, path)
			continue
		}
		if record.AgentType != agentType {
			continue
		}
		sawReadable = true
		if !record.DeploymentReady {
			continue
		}
		if better(record, best) {
			best = record
		}
	}
	return best, sawReadable, corrupt, nil
}

func better(candidate, current *ImprovedPrompt) bool {
	if current == nil {
		return true
	}
	if candidate.ImprovementScore != current.ImprovementScore {
		return candidate.ImprovementScore > current.ImprovementScore
	}
	return candidate.TrainingSessionID > current.TrainingSessionID
}

func decodeRecord(path string) (*ImprovedPrompt, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var record ImprovedPrompt
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	if record.AgentType == "" || record.TrainingSessionID == "" {
		return nil, fmt.Errorf("record %s: missing agent_type or training_session_id", path)
	}
	return &record, nil
}

func recordCost(p *ImprovedPrompt) int64 {
	return int64(200 + len(p.ImprovedPrompt) + len(p.OriginalPrompt))
}

// Save persists a record and drops the cached lookup for its agent type.
func (s *Store) Save(record *ImprovedPrompt) error {
	if record.AgentType == "" || record.TrainingSessionID == "" {
		return fmt.Errorf("record must have agent_type and training_session_id")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating training records dir: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding training record: %w", err)
	}
	path := filepath.Join(s.dir, record.ID()+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing training record: %w", err)
	}

	s.cache.Del(record.AgentType)
	s.logger.Info("saved improved prompt record",
		"agent_type", record.AgentType, "session", record.TrainingSessionID,
		"score", record.ImprovementScore, "ready", record.DeploymentReady)
	return nil
}

// Deploy marks an existing record deployment-ready. Returns the updated
// record so callers can invalidate prompt cache entries for the agent.
func (s *Store) Deploy(agentType, sessionID string) (*ImprovedPrompt, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", agentType, sessionID))
	record, err := decodeRecord(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s session %s", ErrRecordNotFound, agentType, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading record for deploy: %w", err)
	}

	record.DeploymentReady = true
	if err := s.Save(record); err != nil {
		return nil, err
	}
	return record, nil
}

// Close releases the lookup cache.
func (s *Store) Close() {
	s.cache.Close()
}
