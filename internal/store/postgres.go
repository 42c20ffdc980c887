package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/scopewell/scope-copilot/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. Satisfied by
// pgxmock pools in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// newPostgresWithPool wires an existing pool, used by tests.
func newPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS traces (
	id         TEXT PRIMARY KEY,
	thread_id  TEXT NOT NULL,
	turn_id    INTEGER NOT NULL,
	record     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS feedback (
	id         TEXT PRIMARY KEY,
	thread_id  TEXT NOT NULL,
	turn_id    INTEGER NOT NULL,
	record     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sessions (
	thread_id   TEXT PRIMARY KEY,
	platform    TEXT NOT NULL,
	state       TEXT NOT NULL,
	turn_count  INTEGER NOT NULL,
	record      JSONB NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_traces_thread ON traces(thread_id, turn_id);
CREATE INDEX IF NOT EXISTS idx_feedback_thread ON feedback(thread_id, turn_id);
CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
CREATE INDEX IF NOT EXISTS idx_sessions_platform ON sessions(platform);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) AppendTrace(ctx context.Context, rec model.TraceRecord) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal trace")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO traces (id, thread_id, turn_id, record, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.ThreadID, rec.TurnID, recordJSON, rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert trace %s", rec.ID)
}

func (s *PostgresStore) ListTraces(ctx context.Context, threadID string) ([]model.TraceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM traces WHERE thread_id = $1 ORDER BY turn_id ASC`,
		threadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list traces %s", threadID)
	}
	defer rows.Close()

	var out []model.TraceRecord
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, eris.Wrap(err, "postgres: scan trace")
		}
		var rec model.TraceRecord
		if err := json.Unmarshal(blob, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal trace")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate traces")
}

func (s *PostgresStore) AppendFeedback(ctx context.Context, rec model.FeedbackRecord) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal feedback")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO feedback (id, thread_id, turn_id, record, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.ThreadID, rec.TurnID, recordJSON, rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert feedback %s", rec.ID)
}

func (s *PostgresStore) ListFeedback(ctx context.Context, threadID string) ([]model.FeedbackRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM feedback WHERE thread_id = $1 ORDER BY turn_id ASC, created_at ASC`,
		threadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list feedback %s", threadID)
	}
	defer rows.Close()

	var out []model.FeedbackRecord
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, eris.Wrap(err, "postgres: scan feedback")
		}
		var rec model.FeedbackRecord
		if err := json.Unmarshal(blob, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal feedback")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate feedback")
}

func (s *PostgresStore) ArchiveSession(ctx context.Context, sess model.ArchivedSession) error {
	if sess.ArchivedAt.IsZero() {
		sess.ArchivedAt = time.Now().UTC()
	}
	recordJSON, err := json.Marshal(sess)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal session")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (thread_id, platform, state, turn_count, record, archived_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (thread_id) DO UPDATE SET
		   platform = EXCLUDED.platform,
		   state = EXCLUDED.state,
		   turn_count = EXCLUDED.turn_count,
		   record = EXCLUDED.record,
		   archived_at = EXCLUDED.archived_at`,
		sess.ThreadID, sess.Platform, string(sess.State), sess.TurnCount, recordJSON, sess.ArchivedAt,
	)
	return eris.Wrapf(err, "postgres: archive session %s", sess.ThreadID)
}

func (s *PostgresStore) GetArchivedSession(ctx context.Context, threadID string) (*model.ArchivedSession, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM sessions WHERE thread_id = $1`,
		threadID,
	).Scan(&blob)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get session %s", threadID)
	}
	var sess model.ArchivedSession
	if err := json.Unmarshal(blob, &sess); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal session")
	}
	return &sess, nil
}

func (s *PostgresStore) ListArchivedSessions(ctx context.Context, filter ArchiveFilter) ([]model.ArchivedSession, error) {
	query := `SELECT record FROM sessions WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.State != "" {
		query += ` AND state = ` + arg(string(filter.State))
	}
	if filter.Platform != "" {
		query += ` AND platform = ` + arg(filter.Platform)
	}
	query += ` ORDER BY archived_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ` + arg(filter.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var out []model.ArchivedSession
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		var sess model.ArchivedSession
		if err := json.Unmarshal(blob, &sess); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal session")
		}
		out = append(out, sess)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate sessions")
}
