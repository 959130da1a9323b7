package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	apperrors "github.com/TannerBurns/termai/internal/errors"
)

// sqliteSchema holds every session as one row: summary columns for
// cheap listing plus the full snapshot as a JSON blob.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	mode    TEXT NOT NULL,
	phase   TEXT NOT NULL DEFAULT '',
	steps   INTEGER NOT NULL DEFAULT 0,
	created TEXT NOT NULL,
	updated TEXT NOT NULL,
	state   BLOB NOT NULL
);`

// SQLiteStore persists snapshots in a single SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids busy errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// Save upserts the snapshot. The snapshot must carry an id.
func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	if snap.ID == "" {
		return fmt.Errorf("session snapshot has no id")
	}

	state, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", snap.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, mode, phase, steps, created, updated, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			mode = excluded.mode,
			phase = excluded.phase,
			steps = excluded.steps,
			updated = excluded.updated,
			state = excluded.state`,
		snap.ID, snap.Name, snap.Mode, snap.Phase, len(snap.Checklist.Items),
		snap.Created.Format(time.RFC3339Nano), snap.Updated.Format(time.RFC3339Nano),
		state)
	if err != nil {
		return fmt.Errorf("save session %s: %w", snap.ID, err)
	}
	return nil
}

// Load reads a snapshot by id.
func (s *SQLiteStore) Load(ctx context.Context, id string) (Snapshot, error) {
	var state []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM sessions WHERE id = ?`, id).Scan(&state)
	if err != nil {
		if err == sql.ErrNoRows {
			return Snapshot{}, apperrors.ErrSessionNotFound
		}
		return Snapshot{}, fmt.Errorf("read session %s: %w", id, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", apperrors.ErrSessionCorrupted, err)
	}
	if snap.ID != id {
		return Snapshot{}, fmt.Errorf("%w: row records id %q", apperrors.ErrSessionCorrupted, snap.ID)
	}
	return snap, nil
}

// List returns summaries for every stored session, ordered by id.
// Session ids are ULIDs, so the order is creation order.
func (s *SQLiteStore) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, mode, phase, steps, created, updated
		FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var (
			info             Info
			created, updated string
		)
		if err := rows.Scan(&info.ID, &info.Name, &info.Mode, &info.Phase,
			&info.Steps, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		info.Created, _ = time.Parse(time.RFC3339Nano, created)
		info.Updated, _ = time.Parse(time.RFC3339Nano, updated)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return infos, nil
}

// Delete removes a session row.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if affected == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
