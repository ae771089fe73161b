package composer

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/agentpm/core/hierarchy"
	"github.com/adalundhe/agentpm/core/profile"
	"github.com/adalundhe/agentpm/core/promptcache"
	"github.com/adalundhe/agentpm/core/training"
)

const engineerDoc = `## Role
Backend implementation specialist.

## Core Capabilities
- Backend Development
- API Development

## Authority Scope
- Source code modification

## Context Preferences
- **Include**: backend, performance, system
- **Exclude**: frontend

## Quality Standards
- Tests accompany every change
`

type composeEnv struct {
	composer    *Composer
	cache       *promptcache.Cache
	profilesDir string
	trainingDir string
}

func newComposeEnv(t *testing.T) *composeEnv {
	t.Helper()
	root := t.TempDir()
	profilesDir := filepath.Join(root, "agents")
	trainingDir := filepath.Join(root, "training")
	require.NoError(t, os.MkdirAll(profilesDir, 0o755))

	require.NoError(t, os.WriteFile(
		filepath.Join(profilesDir, "engineer.md"), []byte(engineerDoc), 0o644))

	store, err := profile.NewStore(profile.StoreConfig{
		TierPaths: map[profile.Tier]string{profile.TierProject: profilesDir},
	})
	require.NoError(t, err)

	trainingStore, err := training.NewStore(training.StoreConfig{Dir: trainingDir})
	require.NoError(t, err)
	t.Cleanup(trainingStore.Close)

	cache := promptcache.New(promptcache.Config{})
	return &composeEnv{
		composer: New(Config{
			Resolver: hierarchy.NewResolver(store, nil),
			Training: trainingStore,
			Cache:    cache,
		}),
		cache:       cache,
		profilesDir: profilesDir,
		trainingDir: trainingDir,
	}
}

func (env *composeEnv) writeTrainingRecord(t *testing.T, rec training.ImprovedPrompt) {
	t.Helper()
	require.NoError(t, os.MkdirAll(env.trainingDir, 0o755))
	data, err := json.MarshalIndent(rec, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(
		filepath.Join(env.trainingDir, rec.ID()+".json"), data, 0o644))
}

func engineerRequest() TaskRequest {
	return TaskRequest{
		AgentName:       "engineer",
		TaskDescription: "Implement the payments retry queue",
		Requirements:    []string{"idempotent handlers"},
		Deliverables:    []string{"queue worker", "integration tests"},
		Priority:        "high",
		EnhancedPrompts: true,
	}
}

func TestComposeBaseProfile(t *testing.T) {
	env := newComposeEnv(t)

	result, err := env.composer.Compose(engineerRequest())
	require.NoError(t, err)

	assert.Equal(t, profile.TierProject, result.TierUsed)
	assert.False(t, result.CacheHit)
	assert.False(t, result.Degraded)
	assert.Empty(t, result.ImprovedPromptRef)
	assert.Equal(t, "project:engineer", result.ProfileRef)

	assert.Contains(t, result.FinalText, "**Engineer**: Backend implementation specialist.")
	assert.Contains(t, result.FinalText, "## Core Capabilities")
	assert.Contains(t, result.FinalText, "- Backend Development")
	assert.Contains(t, result.FinalText, "## Task\nImplement the payments retry queue")
	assert.Contains(t, result.FinalText, "- idempotent handlers")
	assert.Contains(t, result.FinalText, "- queue worker")
	assert.Contains(t, result.FinalText, "**Priority**: high")
	assert.NotContains(t, result.FinalText, "## Enhanced Capabilities")
}

func TestComposeMissThenHit(t *testing.T) {
	env := newComposeEnv(t)
	req := engineerRequest()

	first, err := env.composer.Compose(req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := env.composer.Compose(req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.FinalText, second.FinalText,
		"cached base plus identical volatile fields must reproduce the prompt exactly")

	// A different task reuses the same cached base.
	req.TaskDescription = "Profile the allocation hot path"
	third, err := env.composer.Compose(req)
	require.NoError(t, err)
	assert.True(t, third.CacheHit)
	assert.Contains(t, third.FinalText, "Profile the allocation hot path")
}

func TestComposeWithImprovedPrompt(t *testing.T) {
	env := newComposeEnv(t)
	env.writeTrainingRecord(t, training.ImprovedPrompt{
		AgentType:         "engineer",
		ImprovedPrompt:    "Prefer property-based tests for queue invariants.",
		ImprovementScore:  28.5,
		TrainingSessionID: "s2",
		Timestamp:         time.Now().UTC(),
		DeploymentReady:   true,
	})

	result, err := env.composer.Compose(engineerRequest())
	require.NoError(t, err)

	assert.Equal(t, "engineer_s2", result.ImprovedPromptRef)
	assert.False(t, result.Degraded)
	assert.Contains(t, result.FinalText, "## Enhanced Capabilities")
	assert.Contains(t, result.FinalText, "Training session s2 (score 28.5)")
	assert.Contains(t, result.FinalText, "Prefer property-based tests")
}

func TestComposePlainSkipsTraining(t *testing.T) {
	env := newComposeEnv(t)
	env.writeTrainingRecord(t, training.ImprovedPrompt{
		AgentType:         "engineer",
		ImprovedPrompt:    "Should never appear.",
		ImprovementScore:  30,
		TrainingSessionID: "s1",
		DeploymentReady:   true,
	})

	req := engineerRequest()
	req.EnhancedPrompts = false
	result, err := env.composer.Compose(req)
	require.NoError(t, err)
	assert.NotContains(t, result.FinalText, "Enhanced Capabilities")
	assert.Empty(t, result.ImprovedPromptRef)

	// Plain and enhanced compositions key separately; enabling enhancement
	// must not serve the plain rendering from cache.
	req.EnhancedPrompts = true
	enhanced, err := env.composer.Compose(req)
	require.NoError(t, err)
	assert.False(t, enhanced.CacheHit)
	assert.Contains(t, enhanced.FinalText, "Enhanced Capabilities")
}

func TestComposeDegradesOnCorruptRecords(t *testing.T) {
	env := newComposeEnv(t)
	require.NoError(t, os.MkdirAll(env.trainingDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(env.trainingDir, "engineer_bad.json"), []byte("{broken"), 0o644))

	result, err := env.composer.Compose(engineerRequest())
	require.NoError(t, err, "corrupt training records must not fail composition")
	assert.True(t, result.Degraded)
	assert.Empty(t, result.ImprovedPromptRef)
	assert.Contains(t, result.FinalText, "**Engineer**")

	// The degraded marker is part of the cached base text, so a hit on
	// the same rendering still reports it.
	second, err := env.composer.Compose(engineerRequest())
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.True(t, second.Degraded)
}

func TestComposeUnknownAgent(t *testing.T) {
	env := newComposeEnv(t)

	req := engineerRequest()
	req.AgentName = "ghost"
	_, err := env.composer.Compose(req)
	require.Error(t, err)

	var composeErr *ComposeError
	require.ErrorAs(t, err, &composeErr)
	assert.Equal(t, KindAgentUnknown, composeErr.Kind)
	assert.True(t, errors.Is(err, hierarchy.ErrAgentUnknown))
}

func TestComposeContextFiltering(t *testing.T) {
	env := newComposeEnv(t)

	req := engineerRequest()
	req.Context = map[string]string{
		"system_type":        "microservices",
		"frontend_framework": "react",
		"current_focus":      "performance tuning",
	}
	result, err := env.composer.Compose(req)
	require.NoError(t, err)

	assert.Contains(t, result.FinalText, "## Task Context")
	assert.Contains(t, result.FinalText, "- system_type: microservices")
	assert.Contains(t, result.FinalText, "- current_focus: performance tuning")
	assert.NotContains(t, result.FinalText, "frontend_framework")
}

func TestComposeProfileChangeMissesStaleKey(t *testing.T) {
	env := newComposeEnv(t)
	req := engineerRequest()

	_, err := env.composer.Compose(req)
	require.NoError(t, err)

	// A content change produces a new content hash and thus a new key; the
	// stale entry is simply never consulted again.
	updated := engineerDoc + "\n## Escalation Criteria\n- Schema migrations\n"
	require.NoError(t, os.WriteFile(
		filepath.Join(env.profilesDir, "engineer.md"), []byte(updated), 0o644))

	result, err := env.composer.Compose(req)
	require.NoError(t, err)
	assert.False(t, result.CacheHit)
	assert.Contains(t, result.FinalText, "Schema migrations")
}

func TestInvalidateAgent(t *testing.T) {
	env := newComposeEnv(t)
	req := engineerRequest()

	_, err := env.composer.Compose(req)
	require.NoError(t, err)
	require.Equal(t, 1, env.cache.Len())

	removed := env.composer.InvalidateAgent("Engineer-Agent")
	assert.Equal(t, 1, removed, "invalidation normalizes the agent name")

	result, err := env.composer.Compose(req)
	require.NoError(t, err)
	assert.False(t, result.CacheHit)
}

func TestComposeEndToEndScenario(t *testing.T) {
	env := newComposeEnv(t)
	doc := `## Role
Backend implementation specialist.

## Core Capabilities
- Backend Development
- API Development

## Context Preferences
- **Include**: backend, performance
`
	require.NoError(t, os.WriteFile(
		filepath.Join(env.profilesDir, "engineer.md"), []byte(doc), 0o644))
	env.writeTrainingRecord(t, training.ImprovedPrompt{
		AgentType:         "engineer",
		ImprovedPrompt:    "Lead with threat-model considerations for auth work.",
		ImprovementScore:  28.5,
		TrainingSessionID: "s7",
		DeploymentReady:   true,
	})

	result, err := env.composer.Compose(TaskRequest{
		AgentName:       "engineer",
		TaskDescription: "Implement JWT auth",
		Context:         map[string]string{"system_type": "distributed_microservices"},
		EnhancedPrompts: true,
	})
	require.NoError(t, err)

	assert.Equal(t, profile.TierProject, result.TierUsed)
	assert.Contains(t, result.FinalText, "Backend implementation specialist.")
	assert.Contains(t, result.FinalText, "- Backend Development")
	assert.Contains(t, result.FinalText, "- API Development")
	assert.Contains(t, result.FinalText, "Lead with threat-model considerations")
	assert.Contains(t, result.FinalText, "- system_type: distributed_microservices")
}

func TestComposeDefaultPriority(t *testing.T) {
	env := newComposeEnv(t)

	req := engineerRequest()
	req.Priority = ""
	result, err := env.composer.Compose(req)
	require.NoError(t, err)
	assert.Contains(t, result.FinalText, "**Priority**: medium")
}
