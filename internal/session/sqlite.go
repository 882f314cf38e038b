package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/campbot/internal/chat"
	"github.com/comigor/campbot/internal/logger"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    payload TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS turns_session_idx ON turns(session_id, id);
CREATE INDEX IF NOT EXISTS sessions_created_idx ON sessions(created_at);
`

// SQLiteStore persists sessions in a SQLite database so they survive restarts
// and can be shared by processes on the same host.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session tables: %w", err)
	}
	logger.L.Info("sqlite session store initialized", "path", path)
	return &SQLiteStore{db: db, opts: buildOptions(opts)}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM sessions WHERE id = ?;`, id).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM turns WHERE session_id = ? ORDER BY id ASC;`, id)
	if err != nil {
		return nil, fmt.Errorf("load turns of %s: %w", id, err)
	}
	defer rows.Close()

	out := &Session{ID: id, CreatedAt: time.Unix(0, createdAt)}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var turn chat.Turn
		if err := json.Unmarshal([]byte(payload), &turn); err != nil {
			return nil, fmt.Errorf("decode turn of %s: %w", id, err)
		}
		out.Turns = append(out.Turns, turn)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Create(ctx context.Context) (*Session, error) {
	out := &Session{ID: s.opts.newID(), CreatedAt: s.opts.clock()}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO sessions (id, created_at) VALUES (?, ?);`, out.ID, out.CreatedAt.UnixNano()); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Append(ctx context.Context, id string, turns ...chat.Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?;`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	for _, turn := range turns {
		payload, err := json.Marshal(turn)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO turns (session_id, role, payload, created_at) VALUES (?, ?, ?, ?);`,
			id, string(turn.Role), string(payload), turn.CreatedAt.UnixNano()); err != nil {
			return fmt.Errorf("append turn to %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.opts.ttl).UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id IN (SELECT id FROM sessions WHERE created_at < ?);`, cutoff); err != nil {
		return 0, fmt.Errorf("sweep turns: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(removed), tx.Commit()
}
