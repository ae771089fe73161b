// Package orchestrator is the public entry point for task prompt
// construction. The builder validates incoming task requests, delegates to
// the composer, and keeps a bounded history of invocations for inspection.
// It never talks to the assistant subprocess itself; callers hand the
// composed text to the external CLI.
package orchestrator

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adalundhe/agentpm/core/composer"
	"github.com/adalundhe/agentpm/core/telemetry"
)

// ValidationError reports a malformed task request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task request: %s %s", e.Field, e.Reason)
}

// Builder is safe for concurrent use; parallel task requests for different
// agents are the expected caller pattern.
type Builder struct {
	composer *composer.Composer
	history  *History
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

// BuilderConfig configures a builder.
type BuilderConfig struct {
	Composer *composer.Composer
	// History defaults to an in-memory ring of DefaultHistorySize.
	History *History
	// Metrics defaults to the process-wide instruments.
	Metrics *telemetry.Metrics
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewBuilder creates a task request builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.History == nil {
		cfg.History = NewHistory(0, "", cfg.Logger)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Builder{
		composer: cfg.Composer,
		history:  cfg.History,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// Build validates the request, composes the prompt, and records the
// invocation. Failed compositions are recorded too; validation failures
// are not, since they never reached the composer.
func (b *Builder) Build(req composer.TaskRequest) (*composer.ComposedPrompt, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	composed, err := b.composer.Compose(req)

	entry := HistoryEntry{
		ID:                  uuid.NewString(),
		Timestamp:           time.Now().UTC(),
		Agent:               req.AgentName,
		TrainingIntegration: req.TrainingIntegration,
	}
	if err != nil {
		entry.Error = err.Error()
		b.history.Record(entry)
		b.metrics.ObserveError(errorKind(err))
		return nil, err
	}

	entry.Tier = string(composed.TierUsed)
	entry.CacheHit = composed.CacheHit
	entry.Degraded = composed.Degraded
	entry.LatencyMS = composed.LatencyMS()
	b.history.Record(entry)
	b.metrics.ObserveComposition(req.AgentName, entry.Tier, composed.CacheHit, composed.Latency)

	b.logger.Debug("composed task prompt",
		"agent", req.AgentName, "tier", composed.TierUsed,
		"cache_hit", composed.CacheHit, "degraded", composed.Degraded,
		"latency_ms", composed.LatencyMS())
	return composed, nil
}

func errorKind(err error) string {
	var composeErr *composer.ComposeError
	if errors.As(err, &composeErr) {
		return composeErr.Kind.String()
	}
	return "unknown"
}

func validate(req composer.TaskRequest) error {
	if strings.TrimSpace(req.AgentName) == "" {
		return &ValidationError{Field: "agent_name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(req.TaskDescription) == "" {
		return &ValidationError{Field: "task_description", Reason: "must not be empty"}
	}
	return nil
}

// History exposes the request history for status surfaces.
func (b *Builder) History() *History {
	return b.history
}
