package model

import "time"

// FieldDelta records one field change applied during a turn.
type FieldDelta struct {
	Field         string     `json:"field"`
	OldValue      any        `json:"old_value,omitempty"`
	NewValue      any        `json:"new_value,omitempty"`
	OldConfidence float64    `json:"old_confidence"`
	NewConfidence float64    `json:"new_confidence"`
	Provenance    Provenance `json:"provenance"`
}

// RetrievalHit is one similar past project returned by the retrieval
// backend, with payload fields the engine can fold into suggestions.
type RetrievalHit struct {
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	Similarity   float64  `json:"similarity"`
	Platform     string   `json:"platform,omitempty"`
	TechStack    []string `json:"tech_stack,omitempty"`
	TimelineDays int      `json:"timeline_days,omitempty"`
}

// TraceRecord is one immutable reasoning trace entry, appended exactly once
// per decision point. Never mutated or deleted after write.
type TraceRecord struct {
	ID        string         `json:"id"`
	ThreadID  string         `json:"thread_id"`
	TurnID    int            `json:"turn_id"`
	FromState SessionState   `json:"from_state"`
	ToState   SessionState   `json:"to_state"`
	Deltas    []FieldDelta   `json:"deltas,omitempty"`
	Dropped   []string       `json:"dropped,omitempty"`  // candidates discarded, with reason
	Degraded  []string       `json:"degraded,omitempty"` // backends that timed out or failed
	Hits      []RetrievalHit `json:"retrieval_hits,omitempty"`
	Rationale string         `json:"rationale"`
	CreatedAt time.Time      `json:"created_at"`
}

// FeedbackAction enumerates the explicit correction actions.
type FeedbackAction string

const (
	FeedbackAccept   FeedbackAction = "accept"
	FeedbackReject   FeedbackAction = "reject"
	FeedbackOverride FeedbackAction = "override"
)

// FeedbackRecord captures one user correction event. Immutable.
type FeedbackRecord struct {
	ID              string         `json:"id"`
	ThreadID        string         `json:"thread_id"`
	TurnID          int            `json:"turn_id"`
	Field           string         `json:"field"`
	Action          FeedbackAction `json:"action"`
	PriorValue      any            `json:"prior_value,omitempty"`
	PriorConfidence float64        `json:"prior_confidence"`
	NewValue        any            `json:"new_value,omitempty"`
	NewConfidence   float64        `json:"new_confidence"`
	CreatedAt       time.Time      `json:"created_at"`
}
