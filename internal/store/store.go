// Package store persists the append-only reasoning trace, the feedback
// log, and the archive of terminal sessions. Two backends are provided:
// SQLite for single-node installs and Postgres for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/scopewell/scope-copilot/internal/config"
	"github.com/scopewell/scope-copilot/internal/model"
)

// ArchiveFilter specifies criteria for listing archived sessions.
type ArchiveFilter struct {
	State    model.SessionState `json:"state,omitempty"`
	Platform string             `json:"platform,omitempty"`
	Limit    int                `json:"limit,omitempty"`
	Offset   int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for the scoping engine. Trace
// and feedback writes are append-only; records are never mutated or
// deleted. Writes for one thread arrive pre-serialized by the session
// lock, so implementations only need cross-thread safety.
type Store interface {
	// Reasoning trace
	AppendTrace(ctx context.Context, rec model.TraceRecord) error
	ListTraces(ctx context.Context, threadID string) ([]model.TraceRecord, error)

	// Feedback log
	AppendFeedback(ctx context.Context, rec model.FeedbackRecord) error
	ListFeedback(ctx context.Context, threadID string) ([]model.FeedbackRecord, error)

	// Session archive
	ArchiveSession(ctx context.Context, s model.ArchivedSession) error
	GetArchivedSession(ctx context.Context, threadID string) (*model.ArchivedSession, error)
	ListArchivedSessions(ctx context.Context, filter ArchiveFilter) ([]model.ArchivedSession, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open builds the store selected by configuration.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.SQLitePath)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires store.database_url")
		}
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
