// Package profile loads and parses agent profile documents from a
// filesystem tier. A profile is a structured markdown file describing one
// agent role: what it does, what it may decide, and what context it wants.
package profile

import (
	"fmt"
	"strings"
	"time"
)

// Tier is a precedence level for agent profile resolution.
// Project-tier profiles always win over user-tier, which win over system-tier.
type Tier string

const (
	// TierProject holds profiles local to the current working tree (.agentpm/agents).
	TierProject Tier = "project"
	// TierUser holds profiles customized by the user (data dir agents/).
	TierUser Tier = "user"
	// TierSystem holds the stock profiles installed with the framework.
	TierSystem Tier = "system"
)

// Precedence returns the lookup rank of the tier; lower ranks win.
func (t Tier) Precedence() int {
	switch t {
	case TierProject:
		return 0
	case TierUser:
		return 1
	case TierSystem:
		return 2
	}
	return 3
}

// TiersByPrecedence lists tiers in resolution order.
func TiersByPrecedence() []Tier {
	return []Tier{TierProject, TierUser, TierSystem}
}

// ContextPreferences filters ambient task context before it is rendered
// into a prompt. Tags are topical hints, not strict schemas: matching is
// case-insensitive substring containment.
type ContextPreferences struct {
	Include []string
	Exclude []string
}

// Profile is one parsed agent profile document. Immutable once constructed;
// a changed source file produces a new Profile with a new ContentHash.
type Profile struct {
	Name               string
	Tier               Tier
	Role               string
	Capabilities       []string
	AuthorityScope     []string
	ContextPreferences ContextPreferences
	QualityStandards   []string

	// Optional sections; empty when the document omits them.
	EscalationCriteria  []string
	IntegrationPatterns map[string]string

	SourcePath   string
	ContentHash  string
	LastModified time.Time

	// Raw is the full document text, kept for diagnostics.
	Raw string
}

// ID identifies the profile by tier and name, e.g. "project:engineer".
func (p *Profile) ID() string {
	return fmt.Sprintf("%s:%s", p.Tier, p.Name)
}

var nicknames = map[string]string{
	"engineer":        "Engineer",
	"documentation":   "Documenter",
	"qa":              "QA",
	"ops":             "Ops",
	"security":        "Security",
	"research":        "Researcher",
	"version_control": "Versioner",
	"ticketing":       "Ticketer",
	"data_engineer":   "Data Engineer",
	"architect":       "Architect",
	"pm":              "PM",
	"orchestrator":    "Orchestrator",
}

// Nickname returns the display name used in rendered task prompts.
func (p *Profile) Nickname() string {
	if nick, ok := nicknames[p.Name]; ok {
		return nick
	}
	return titleCase(p.Name)
}

func titleCase(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}

// NormalizeName canonicalizes an agent name or profile filename stem:
// lowercase with conventional suffixes stripped.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, suffix := range []string{"-agent", "_agent", "-profile"} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}
