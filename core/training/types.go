// Package training reads improved-prompt records produced by the prompt
// training process. Records are immutable JSON documents, one per training
// session per agent type; this package consumes them and never trains.
package training

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ImprovedPrompt is one training-derived enhancement to an agent's base
// prompt. Only deployment-ready records are ever applied.
type ImprovedPrompt struct {
	AgentType         string             `json:"agent_type"`
	OriginalPrompt    string             `json:"original_prompt,omitempty"`
	ImprovedPrompt    string             `json:"improved_prompt"`
	ImprovementScore  float64            `json:"improvement_score"`
	TrainingSessionID string             `json:"training_session_id"`
	Timestamp         time.Time          `json:"timestamp"`
	ValidationMetrics map[string]float64 `json:"validation_metrics,omitempty"`
	DeploymentReady   bool               `json:"deployment_ready"`
}

// ID uniquely identifies the record for provenance and cache keys.
func (p *ImprovedPrompt) ID() string {
	return fmt.Sprintf("%s_%s", p.AgentType, p.TrainingSessionID)
}

// NewSessionID generates a training session identifier whose lexicographic
// order matches creation order: a UTC timestamp prefix plus a short random
// suffix for uniqueness within the same second.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102T150405"), uuid.NewString()[:8])
}
