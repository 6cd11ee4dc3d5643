package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

type Role string

const (
	UserRole        Role = "user"
	BotRole         Role = "bot"
	ParticipantRole Role = "participant"
)

// MessageKind tags a message at creation time instead of re-deriving it by
// parsing stored content.
type MessageKind string

const (
	KindMessage MessageKind = "message"
	KindPlan    MessageKind = "plan"
)

// ChatSession is read once per turn to seed the system description.
type ChatSession struct {
	ID                string    `json:"id"`
	SystemDescription string    `json:"system_description"`
	CreatedAt         time.Time `json:"created_at"`
}

// ChatMessage is one entry in a chat timeline. Bot messages additionally
// carry the prompt that generated them and the per-stage token usage.
type ChatMessage struct {
	ID         string      `json:"id"`
	ChatID     string      `json:"chat_id"`
	AuthorID   string      `json:"author_id"`
	AuthorName string      `json:"author_name"`
	Role       Role        `json:"role"`
	Kind       MessageKind `json:"kind"`
	Content    string      `json:"content"`
	Prompt     string      `json:"prompt,omitempty"`
	TokenUsage TokenUsage  `json:"token_usage,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ProposedPlan is a multi-step action proposal awaiting user approval.
// Producing one suppresses normal response generation for the turn.
type ProposedPlan struct {
	Intent      string     `json:"intent"`
	Description string     `json:"description"`
	Steps       []PlanStep `json:"steps,omitempty"`
	ProposedAt  time.Time  `json:"proposed_at"`
}

type PlanStep struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Serialize renders the plan as the message content persisted for a
// plan-proposal turn.
func (p *ProposedPlan) Serialize() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("serializing proposed plan: %w", err)
	}
	return string(raw), nil
}

// PlanResult is what the external planning engine returns: background text to
// fold into the prompt, an optional proposal, and the engine's trace.
type PlanResult struct {
	Result         string
	Proposed       *ProposedPlan
	ThoughtProcess string
}

// PlanCancelledContent replaces the stored plan payload when the caller
// cancels a previously proposed plan.
const PlanCancelledContent = "The plan was cancelled."

var planIntentPattern = regexp.MustCompile(`"intent"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// SummarizePlanContent collapses a serialized plan into a one-line history
// entry so plan payloads do not dominate the history token budget.
func SummarizePlanContent(content string) string {
	if content == PlanCancelledContent {
		return "Bot proposed plan that the user cancelled"
	}
	var plan ProposedPlan
	if err := json.Unmarshal([]byte(content), &plan); err == nil && plan.Intent != "" {
		return "Bot proposed plan to fulfill user intent: " + plan.Intent
	}
	// Stored payloads from older turns may not decode cleanly.
	if m := planIntentPattern.FindStringSubmatch(content); m != nil && m[1] != "" {
		return "Bot proposed plan to fulfill user intent: " + m[1]
	}
	return "Bot proposed plan"
}

// BotResponsePrompt keeps the rendered prompt together with the structured
// pieces that composed it, for traceability. It is never reparsed.
type BotResponsePrompt struct {
	Audience         string
	Intent           string
	SemanticMemories string
	DocumentMemories string
	History          string
	PlanResult       string
	SystemText       string
	Rendered         string
	Marker           string
	Fingerprint      string
}
