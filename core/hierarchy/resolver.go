// Package hierarchy resolves agent profiles across the three-tier
// precedence chain: project > user > system. The first tier that yields a
// parseable profile wins; a minimal project-tier profile always beats a
// richer system-tier one.
package hierarchy

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/adalundhe/agentpm/core/profile"
)

// ErrAgentUnknown is matched by errors.Is when no tier has the agent.
var ErrAgentUnknown = errors.New("agent unknown at every tier")

// NotFoundError reports total exhaustion of the tier chain.
type NotFoundError struct {
	Agent     string
	Attempted []profile.Tier
}

func (e *NotFoundError) Error() string {
	tiers := make([]string, len(e.Attempted))
	for i, t := range e.Attempted {
		tiers[i] = string(t)
	}
	return fmt.Sprintf("agent %q not found at any tier (tried %s)",
		e.Agent, strings.Join(tiers, " > "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrAgentUnknown }

// TierAttempt records one step of a resolution for diagnostics.
type TierAttempt struct {
	Tier     profile.Tier
	Found    bool
	ParseErr string
}

// Resolution describes how a lookup was satisfied.
type Resolution struct {
	Agent     string
	Attempted []TierAttempt
	Resolved  profile.Tier
}

// Resolver walks the tier chain over a profile store.
type Resolver struct {
	store  *profile.Store
	logger *slog.Logger

	profilesLoaded atomic.Uint64
	parseWarnings  atomic.Uint64
}

// NewResolver creates a resolver over the given store.
func NewResolver(store *profile.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve returns the highest-precedence profile for an agent, with a
// Resolution recording every tier attempted. A document that exists but
// fails to parse is treated as absent for its tier and logged; the chain
// continues to the next tier.
func (r *Resolver) Resolve(agentName string) (*profile.Profile, *Resolution, error) {
	agent := profile.NormalizeName(agentName)
	res := &Resolution{Agent: agent}

	for _, tier := range profile.TiersByPrecedence() {
		p, err := r.store.Load(agent, tier)
		if err == nil {
			res.Attempted = append(res.Attempted, TierAttempt{Tier: tier, Found: true})
			res.Resolved = tier
			r.profilesLoaded.Add(1)
			r.logger.Debug("resolved agent profile", "agent", agent, "tier", tier)
			return p, res, nil
		}

		attempt := TierAttempt{Tier: tier}
		var parseErr *profile.ParseError
		if errors.As(err, &parseErr) {
			// Malformed documents must not shadow lower tiers, but the
			// operator should hear about them.
			attempt.ParseErr = parseErr.Error()
			r.parseWarnings.Add(1)
			r.logger.Warn("profile failed to parse, trying next tier",
				"agent", agent, "tier", tier,
				"hash", shortHash(parseErr.Hash), "error", parseErr)
		} else if !errors.Is(err, profile.ErrNotFound) {
			return nil, res, fmt.Errorf("loading %s profile at %s tier: %w", agent, tier, err)
		}
		res.Attempted = append(res.Attempted, attempt)
	}

	attempted := make([]profile.Tier, len(res.Attempted))
	for i, a := range res.Attempted {
		attempted[i] = a.Tier
	}
	return nil, res, &NotFoundError{Agent: agent, Attempted: attempted}
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// Metrics reports resolver counters.
type Metrics struct {
	ProfilesLoaded uint64
	ParseWarnings  uint64
}

// GetMetrics returns a snapshot of resolver counters.
func (r *Resolver) GetMetrics() Metrics {
	return Metrics{
		ProfilesLoaded: r.profilesLoaded.Load(),
		ParseWarnings:  r.parseWarnings.Load(),
	}
}

// AgentInfo summarizes one discoverable agent for listings.
type AgentInfo struct {
	Name         string
	Tier         profile.Tier
	Path         string
	Role         string
	Capabilities []string
	// Shadowed is true when a higher-precedence tier also defines the agent.
	Shadowed bool
}

// ListAgents discovers every agent across all tiers, sorted by name then
// tier precedence. Lower-precedence duplicates are marked shadowed.
func (r *Resolver) ListAgents() ([]AgentInfo, error) {
	seen := make(map[string]bool)
	var infos []AgentInfo

	for _, tier := range profile.TiersByPrecedence() {
		profiles, err := r.store.ListTier(tier)
		if err != nil {
			return nil, err
		}
		for _, p := range profiles {
			infos = append(infos, AgentInfo{
				Name:         p.Name,
				Tier:         p.Tier,
				Path:         p.SourcePath,
				Role:         p.Role,
				Capabilities: p.Capabilities,
				Shadowed:     seen[p.Name],
			})
			seen[p.Name] = true
		}
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Name != infos[j].Name {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].Tier.Precedence() < infos[j].Tier.Precedence()
	})
	return infos, nil
}
