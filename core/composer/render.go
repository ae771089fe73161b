package composer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adalundhe/agentpm/core/profile"
	"github.com/adalundhe/agentpm/core/training"
)

// renderBase produces the stable portion of a prompt: everything derived
// from the profile document and the improved prompt, nothing per-request.
// Section order is fixed so repeated renderings are byte-identical.
func renderBase(p *profile.Profile, improved *training.ImprovedPrompt) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**%s**: %s\n", p.Nickname(), p.Role)

	b.WriteString("\n## Role\n")
	b.WriteString(p.Role)
	b.WriteString("\n")

	writeBulletSection(&b, "Core Capabilities", p.Capabilities)
	writeBulletSection(&b, "Authority Scope", p.AuthorityScope)

	if len(p.ContextPreferences.Include) > 0 || len(p.ContextPreferences.Exclude) > 0 {
		b.WriteString("\n## Context Preferences\n")
		if len(p.ContextPreferences.Include) > 0 {
			fmt.Fprintf(&b, "- Include: %s\n", strings.Join(p.ContextPreferences.Include, ", "))
		}
		if len(p.ContextPreferences.Exclude) > 0 {
			fmt.Fprintf(&b, "- Exclude: %s\n", strings.Join(p.ContextPreferences.Exclude, ", "))
		}
	}

	writeBulletSection(&b, "Quality Standards", p.QualityStandards)
	writeBulletSection(&b, "Escalation Criteria", p.EscalationCriteria)

	if len(p.IntegrationPatterns) > 0 {
		b.WriteString("\n## Integration Patterns\n")
		agents := make([]string, 0, len(p.IntegrationPatterns))
		for agent := range p.IntegrationPatterns {
			agents = append(agents, agent)
		}
		sort.Strings(agents)
		for _, agent := range agents {
			fmt.Fprintf(&b, "- With %s: %s\n", profile.NormalizeName(agent), p.IntegrationPatterns[agent])
		}
	}

	if improved != nil {
		b.WriteString("\n## Enhanced Capabilities\n")
		fmt.Fprintf(&b, "Training session %s (score %.1f)\n\n",
			improved.TrainingSessionID, improved.ImprovementScore)
		b.WriteString(strings.TrimSpace(improved.ImprovedPrompt))
		b.WriteString("\n")
	}

	return b.String()
}

func writeBulletSection(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

// renderVolatile produces the per-request suffix appended after the cached
// base text: task description, requirements, deliverables, priority, and
// the context items that survived preference filtering.
func renderVolatile(req TaskRequest, context []ContextItem) string {
	var b strings.Builder

	b.WriteString("\n## Task\n")
	b.WriteString(strings.TrimSpace(req.TaskDescription))
	b.WriteString("\n")

	writeBulletSection(&b, "Requirements", req.Requirements)
	writeBulletSection(&b, "Deliverables", req.Deliverables)

	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}
	fmt.Fprintf(&b, "\n**Priority**: %s\n", priority)

	if len(context) > 0 {
		b.WriteString("\n## Task Context\n")
		for _, item := range context {
			fmt.Fprintf(&b, "- %s: %s\n", item.Key, item.Value)
		}
	}

	return b.String()
}
