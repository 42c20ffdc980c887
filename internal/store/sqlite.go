package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/scopewell/scope-copilot/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS traces (
	id         TEXT PRIMARY KEY,
	thread_id  TEXT NOT NULL,
	turn_id    INTEGER NOT NULL,
	record     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS feedback (
	id         TEXT PRIMARY KEY,
	thread_id  TEXT NOT NULL,
	turn_id    INTEGER NOT NULL,
	record     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sessions (
	thread_id   TEXT PRIMARY KEY,
	platform    TEXT NOT NULL,
	state       TEXT NOT NULL,
	turn_count  INTEGER NOT NULL,
	record      TEXT NOT NULL,
	archived_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_traces_thread ON traces(thread_id, turn_id);
CREATE INDEX IF NOT EXISTS idx_feedback_thread ON feedback(thread_id, turn_id);
CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
CREATE INDEX IF NOT EXISTS idx_sessions_platform ON sessions(platform);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendTrace(ctx context.Context, rec model.TraceRecord) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal trace")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO traces (id, thread_id, turn_id, record, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.ThreadID, rec.TurnID, string(recordJSON), rec.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert trace %s", rec.ID)
}

func (s *SQLiteStore) ListTraces(ctx context.Context, threadID string) ([]model.TraceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM traces WHERE thread_id = ? ORDER BY turn_id ASC`,
		threadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list traces %s", threadID)
	}
	defer rows.Close()

	var out []model.TraceRecord
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan trace")
		}
		var rec model.TraceRecord
		if err := json.Unmarshal([]byte(blob), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal trace")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate traces")
}

func (s *SQLiteStore) AppendFeedback(ctx context.Context, rec model.FeedbackRecord) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal feedback")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, thread_id, turn_id, record, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.ThreadID, rec.TurnID, string(recordJSON), rec.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert feedback %s", rec.ID)
}

func (s *SQLiteStore) ListFeedback(ctx context.Context, threadID string) ([]model.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM feedback WHERE thread_id = ? ORDER BY turn_id ASC, created_at ASC`,
		threadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list feedback %s", threadID)
	}
	defer rows.Close()

	var out []model.FeedbackRecord
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan feedback")
		}
		var rec model.FeedbackRecord
		if err := json.Unmarshal([]byte(blob), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal feedback")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate feedback")
}

func (s *SQLiteStore) ArchiveSession(ctx context.Context, sess model.ArchivedSession) error {
	if sess.ArchivedAt.IsZero() {
		sess.ArchivedAt = time.Now().UTC()
	}
	recordJSON, err := json.Marshal(sess)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal session")
	}
	// A session may be re-archived when a later message revives the same
	// thread id and that session terminates too; the latest record wins.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (thread_id, platform, state, turn_count, record, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET
		   platform = excluded.platform,
		   state = excluded.state,
		   turn_count = excluded.turn_count,
		   record = excluded.record,
		   archived_at = excluded.archived_at`,
		sess.ThreadID, sess.Platform, string(sess.State), sess.TurnCount, string(recordJSON), sess.ArchivedAt,
	)
	return eris.Wrapf(err, "sqlite: archive session %s", sess.ThreadID)
}

func (s *SQLiteStore) GetArchivedSession(ctx context.Context, threadID string) (*model.ArchivedSession, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM sessions WHERE thread_id = ?`,
		threadID,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get session %s", threadID)
	}
	var sess model.ArchivedSession
	if err := json.Unmarshal([]byte(blob), &sess); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal session")
	}
	return &sess, nil
}

func (s *SQLiteStore) ListArchivedSessions(ctx context.Context, filter ArchiveFilter) ([]model.ArchivedSession, error) {
	query := `SELECT record FROM sessions WHERE 1=1`
	var args []any
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	if filter.Platform != "" {
		query += ` AND platform = ?`
		args = append(args, filter.Platform)
	}
	query += ` ORDER BY archived_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var out []model.ArchivedSession
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		var sess model.ArchivedSession
		if err := json.Unmarshal([]byte(blob), &sess); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal session")
		}
		out = append(out, sess)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate sessions")
}
