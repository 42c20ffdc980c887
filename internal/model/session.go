package model

import "time"

// SessionState is the dialogue state machine state.
type SessionState string

const (
	StateCollecting SessionState = "collecting"
	StateConfirming SessionState = "confirming"
	StateScoped     SessionState = "scoped"
	StateAbandoned  SessionState = "abandoned"
)

// Terminal reports whether the state ends the session.
func (s SessionState) Terminal() bool {
	return s == StateScoped || s == StateAbandoned
}

// Message is one utterance in a session's history.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// SessionSnapshot is a read-only view of a live session, returned by the
// session inspection API.
type SessionSnapshot struct {
	ThreadID  string           `json:"thread_id"`
	Platform  string           `json:"platform"`
	State     SessionState     `json:"state"`
	TurnCount int              `json:"turn_count"`
	Fields    map[string]Entry `json:"fields"`
	Missing   []string         `json:"missing_required"`
	History   []Message        `json:"history"`
}

// ArchivedSession is the durable record of a session that reached a
// terminal state. Archived, never deleted.
type ArchivedSession struct {
	ThreadID   string           `json:"thread_id"`
	Platform   string           `json:"platform"`
	State      SessionState     `json:"state"`
	TurnCount  int              `json:"turn_count"`
	Fields     map[string]Entry `json:"fields"`
	History    []Message        `json:"history"`
	ArchivedAt time.Time        `json:"archived_at"`
}

// FinalSpec flattens archived field entries to a plain field→value map, the
// shape handed to callers when a session reaches scoped.
func (a ArchivedSession) FinalSpec() map[string]any {
	spec := make(map[string]any, len(a.Fields))
	for name, e := range a.Fields {
		if e.Present() {
			spec[name] = e.Value
		}
	}
	return spec
}
