// Package composer renders enhanced task prompts. It merges the resolved
// agent profile, the best deployment-ready improved prompt, and the
// task-specific request fields into one prompt string, consulting and
// populating the shared prompt cache for the stable portion.
package composer

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adalundhe/agentpm/core/hierarchy"
	"github.com/adalundhe/agentpm/core/profile"
	"github.com/adalundhe/agentpm/core/promptcache"
	"github.com/adalundhe/agentpm/core/training"
)

// TaskRequest carries one task delegation for an agent.
type TaskRequest struct {
	AgentName       string
	TaskDescription string
	Requirements    []string
	Deliverables    []string
	Priority        string
	Context         map[string]string

	// EnhancedPrompts enables the improved-prompt overlay. When false the
	// training store is never consulted and the base profile renders alone.
	EnhancedPrompts bool

	// TrainingIntegration marks the request as participating in the prompt
	// training feedback loop. Composition is unaffected; the flag travels
	// into diagnostics so trained and untrained invocations can be compared.
	TrainingIntegration bool
}

// ComposedPrompt is the result of one composition. Ephemeral; only the
// stable base portion persists in the prompt cache.
type ComposedPrompt struct {
	FinalText string
	TierUsed  profile.Tier
	CacheHit  bool

	// Degraded is true when an improved prompt was sought but unusable
	// (corrupt records) at the time the base text was rendered. The
	// marker travels with the cached base text, so cache hits on a
	// degraded rendering report it too, until the entry expires or is
	// invalidated. A missing improvement is reported by an empty
	// ImprovedPromptRef, not by Degraded.
	Degraded bool

	Latency           time.Duration
	ProfileRef        string
	ImprovedPromptRef string
}

// LatencyMS returns the composition latency in milliseconds.
func (p *ComposedPrompt) LatencyMS() float64 {
	return float64(p.Latency) / float64(time.Millisecond)
}

// ErrorKind classifies composition failures.
type ErrorKind int

const (
	// KindAgentUnknown: no profile at any tier. Fatal for the request.
	KindAgentUnknown ErrorKind = iota
	// KindInternal: unexpected store or filesystem failure.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindAgentUnknown:
		return "agent_unknown"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// ComposeError is the typed failure result of Compose.
type ComposeError struct {
	Kind  ErrorKind
	Agent string
	Err   error
}

func (e *ComposeError) Error() string {
	return fmt.Sprintf("compose for %q failed (%s): %v", e.Agent, e.Kind, e.Err)
}

func (e *ComposeError) Unwrap() error { return e.Err }

// Composer wires the resolver, training store, and shared cache together.
type Composer struct {
	resolver *hierarchy.Resolver
	training *training.Store
	cache    *promptcache.Cache
	logger   *slog.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// Config configures a composer.
type Config struct {
	Resolver *hierarchy.Resolver
	Training *training.Store
	// Cache defaults to the process-wide shared cache.
	Cache *promptcache.Cache
	// CacheTTL for newly rendered base prompts; 0 uses the cache default.
	CacheTTL time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New creates a composer.
func New(cfg Config) *Composer {
	if cfg.Cache == nil {
		cfg.Cache = promptcache.Shared()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Composer{
		resolver: cfg.Resolver,
		training: cfg.Training,
		cache:    cfg.Cache,
		logger:   cfg.Logger,
		cacheTTL: cfg.CacheTTL,
		now:      time.Now,
	}
}

// Compose resolves the agent, obtains the base-rendered prompt (from cache
// or by rendering), appends the volatile task fields, and returns the
// result with composition metadata.
func (c *Composer) Compose(req TaskRequest) (*ComposedPrompt, error) {
	start := c.now()

	prof, _, err := c.resolver.Resolve(req.AgentName)
	if err != nil {
		if errors.Is(err, hierarchy.ErrAgentUnknown) {
			return nil, &ComposeError{Kind: KindAgentUnknown, Agent: req.AgentName, Err: err}
		}
		return nil, &ComposeError{Kind: KindInternal, Agent: req.AgentName, Err: err}
	}

	// The enhancement flag changes what gets baked into the cached base
	// text, so it participates in the stable key.
	keyHash := prof.ContentHash
	if !req.EnhancedPrompts {
		keyHash += "|plain"
	}
	key := promptcache.StableKey(prof.Name, string(prof.Tier), keyHash)

	cached, hit := c.cache.Get(key)
	if !hit {
		var improved *training.ImprovedPrompt
		degraded := false
		if req.EnhancedPrompts {
			improved, err = c.findImprovement(prof.Name)
			if err != nil {
				// Corrupt training records degrade to the base profile.
				degraded = true
			}
		}

		cached = promptcache.Value{
			Text:       renderBase(prof, improved),
			Tier:       string(prof.Tier),
			Degraded:   degraded,
			RenderedAt: c.now(),
		}
		if improved != nil {
			cached.ImprovedPromptID = improved.ID()
			cached.ImprovementScore = improved.ImprovementScore
		}
		c.cache.Put(key, cached, c.cacheTTL)
	}

	filtered := FilterContext(prof.ContextPreferences, req.Context)
	finalText := cached.Text + renderVolatile(req, filtered)

	return &ComposedPrompt{
		FinalText:         finalText,
		TierUsed:          profile.Tier(cached.Tier),
		CacheHit:          hit,
		Degraded:          cached.Degraded,
		Latency:           c.now().Sub(start),
		ProfileRef:        prof.ID(),
		ImprovedPromptRef: cached.ImprovedPromptID,
	}, nil
}

// findImprovement asks the training store for the best deployment-ready
// record. Corrupt record sets are logged and reported as an error so the
// caller can mark the composition degraded; they never fail the request.
func (c *Composer) findImprovement(agent string) (*training.ImprovedPrompt, error) {
	if c.training == nil {
		return nil, nil
	}
	improved, err := c.training.FindBest(agent)
	if err != nil {
		var corrupt *training.CorruptRecordError
		if errors.As(err, &corrupt) {
			c.logger.Warn("improved prompt records corrupt, composing from base profile",
				"agent", agent, "files", len(corrupt.Paths))
			return nil, err
		}
		c.logger.Warn("training store lookup failed, composing from base profile",
			"agent", agent, "error", err)
		return nil, err
	}
	return improved, nil
}

// InvalidateAgent drops every cached base prompt for an agent, across
// tiers and content versions. Called when a profile document changes or an
// improved prompt is deployed.
func (c *Composer) InvalidateAgent(agent string) int {
	removed, err := c.cache.InvalidatePattern(promptcache.AgentPattern(profile.NormalizeName(agent)))
	if err != nil {
		c.logger.Warn("cache invalidation failed", "agent", agent, "error", err)
		return 0
	}
	return removed
}
