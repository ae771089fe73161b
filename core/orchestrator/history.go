package orchestrator

import (
	"container/ring"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultHistorySize bounds the in-memory request history.
const DefaultHistorySize = 100

// HistoryEntry records one build invocation for later inspection.
// Diagnostic only; correctness never depends on it.
type HistoryEntry struct {
	ID                  string
	Timestamp           time.Time
	Agent               string
	Tier                string
	CacheHit            bool
	Degraded            bool
	TrainingIntegration bool
	LatencyMS           float64
	Error               string
}

// History keeps the last N entries in a ring buffer, optionally mirroring
// each entry into a sqlite audit table for durability across restarts.
type History struct {
	mu     sync.Mutex
	ring   *ring.Ring
	count  int
	size   int
	db     *sql.DB
	logger *slog.Logger
}

// NewHistory creates an in-memory history of the given size (0 uses the
// default). auditDB, when non-empty, is a sqlite database path; failures
// opening it disable the audit sink rather than failing construction.
func NewHistory(size int, auditDB string, logger *slog.Logger) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &History{ring: ring.New(size), size: size, logger: logger}

	if auditDB != "" {
		db, err := openAuditDB(auditDB)
		if err != nil {
			logger.Warn("request audit database unavailable, history is memory-only",
				"path", auditDB, "error", err)
		} else {
			h.db = db
		}
	}
	return h
}

func openAuditDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS request_history (
			id TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			agent TEXT NOT NULL,
			tier TEXT,
			cache_hit INTEGER NOT NULL,
			degraded INTEGER NOT NULL,
			training_integration INTEGER NOT NULL,
			latency_ms REAL NOT NULL,
			error TEXT
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating request_history table: %w", err)
	}
	return db, nil
}

// Record appends an entry, evicting the oldest when full.
func (h *History) Record(entry HistoryEntry) {
	h.mu.Lock()
	h.ring.Value = entry
	h.ring = h.ring.Next()
	if h.count < h.size {
		h.count++
	}
	h.mu.Unlock()

	if h.db != nil {
		h.persist(entry)
	}
}

// persist runs outside the ring lock; the audit write is best-effort.
func (h *History) persist(entry HistoryEntry) {
	_, err := h.db.Exec(`
		INSERT OR REPLACE INTO request_history
		(id, timestamp, agent, tier, cache_hit, degraded, training_integration, latency_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		entry.Agent,
		entry.Tier,
		boolInt(entry.CacheHit),
		boolInt(entry.Degraded),
		boolInt(entry.TrainingIntegration),
		entry.LatencyMS,
		entry.Error,
	)
	if err != nil {
		h.logger.Warn("request audit write failed", "id", entry.ID, "error", err)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Recent returns up to n entries, newest first.
func (h *History) Recent(n int) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 || n > h.count {
		n = h.count
	}
	entries := make([]HistoryEntry, 0, n)

	// h.ring points at the next write slot; walk backwards for newest-first.
	r := h.ring
	for i := 0; i < n; i++ {
		r = r.Prev()
		entry, ok := r.Value.(HistoryEntry)
		if !ok {
			break
		}
		entries = append(entries, entry)
	}
	return entries
}

// Len returns the number of entries currently held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Close releases the audit database, if open.
func (h *History) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}
