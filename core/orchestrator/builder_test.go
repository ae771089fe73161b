package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/agentpm/core/composer"
	"github.com/adalundhe/agentpm/core/hierarchy"
	"github.com/adalundhe/agentpm/core/profile"
	"github.com/adalundhe/agentpm/core/promptcache"
)

const qaDoc = `## Role
Quality assurance specialist.

## Capabilities
- Test planning
`

func newTestBuilder(t *testing.T, history *History) *Builder {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "qa.md"), []byte(qaDoc), 0o644))

	store, err := profile.NewStore(profile.StoreConfig{
		TierPaths: map[profile.Tier]string{profile.TierProject: dir},
	})
	require.NoError(t, err)

	return NewBuilder(BuilderConfig{
		Composer: composer.New(composer.Config{
			Resolver: hierarchy.NewResolver(store, nil),
			Cache:    promptcache.New(promptcache.Config{}),
		}),
		History: history,
	})
}

func TestBuildComposesAndRecords(t *testing.T) {
	builder := newTestBuilder(t, nil)

	composed, err := builder.Build(composer.TaskRequest{
		AgentName:           "qa",
		TaskDescription:     "Regression-test the checkout flow",
		TrainingIntegration: true,
	})
	require.NoError(t, err)
	assert.Contains(t, composed.FinalText, "Quality assurance specialist.")

	require.Equal(t, 1, builder.History().Len())
	entry := builder.History().Recent(1)[0]
	assert.Equal(t, "qa", entry.Agent)
	assert.Equal(t, "project", entry.Tier)
	assert.True(t, entry.TrainingIntegration)
	assert.NotEmpty(t, entry.ID)
	assert.Empty(t, entry.Error)
}

func TestBuildValidation(t *testing.T) {
	builder := newTestBuilder(t, nil)

	_, err := builder.Build(composer.TaskRequest{TaskDescription: "do things"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "agent_name", validationErr.Field)

	_, err = builder.Build(composer.TaskRequest{AgentName: "qa", TaskDescription: "   "})
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "task_description", validationErr.Field)

	assert.Equal(t, 0, builder.History().Len(),
		"validation failures never reach the composer and are not recorded")
}

func TestBuildRecordsFailures(t *testing.T) {
	builder := newTestBuilder(t, nil)

	_, err := builder.Build(composer.TaskRequest{
		AgentName:       "ghost",
		TaskDescription: "anything",
	})
	require.Error(t, err)

	require.Equal(t, 1, builder.History().Len())
	entry := builder.History().Recent(1)[0]
	assert.Equal(t, "ghost", entry.Agent)
	assert.NotEmpty(t, entry.Error)
}

func TestBuildConcurrent(t *testing.T) {
	const workers = 8
	const perWorker = 5
	builder := newTestBuilder(t, NewHistory(workers*perWorker, "", nil))

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := builder.Build(composer.TaskRequest{
					AgentName:       "qa",
					TaskDescription: "parallel request",
				})
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, workers*perWorker, builder.History().Len(),
		"every concurrent build is recorded exactly once")

	recent := builder.History().Recent(0)
	require.Len(t, recent, workers*perWorker)
	ids := make(map[string]bool, len(recent))
	for _, entry := range recent {
		assert.Equal(t, "qa", entry.Agent)
		ids[entry.ID] = true
	}
	assert.Len(t, ids, workers*perWorker, "request ids are unique")
}

func TestHistoryRingBound(t *testing.T) {
	h := NewHistory(3, "", nil)
	for i := 0; i < 5; i++ {
		h.Record(HistoryEntry{ID: fmt.Sprintf("e%d", i), Timestamp: time.Now()})
	}

	assert.Equal(t, 3, h.Len())
	recent := h.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "e4", recent[0].ID, "newest first")
	assert.Equal(t, "e3", recent[1].ID)
	assert.Equal(t, "e2", recent[2].ID)
}

func TestHistoryRecentLimit(t *testing.T) {
	h := NewHistory(10, "", nil)
	for i := 0; i < 4; i++ {
		h.Record(HistoryEntry{ID: fmt.Sprintf("e%d", i)})
	}

	recent := h.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "e3", recent[0].ID)

	assert.Len(t, h.Recent(100), 4, "limit beyond count returns everything")
}

func TestHistoryAuditSink(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	h := NewHistory(5, dbPath, nil)
	t.Cleanup(func() { h.Close() })
	require.NotNil(t, h.db, "audit database should open")

	h.Record(HistoryEntry{
		ID:        "audit-1",
		Timestamp: time.Now().UTC(),
		Agent:     "qa",
		Tier:      "project",
		CacheHit:  true,
		LatencyMS: 1.25,
	})

	var count int
	require.NoError(t, h.db.QueryRow(
		"SELECT COUNT(*) FROM request_history WHERE id = ?", "audit-1").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestHistoryAuditUnavailable(t *testing.T) {
	// A directory path cannot be opened as a database; history degrades to
	// memory-only instead of failing.
	h := NewHistory(5, t.TempDir(), nil)
	t.Cleanup(func() { h.Close() })

	h.Record(HistoryEntry{ID: "mem-1"})
	assert.Equal(t, 1, h.Len())
}
