// Package sqlite implements session.Store on SQLite using modernc.org/sqlite
// (pure Go, no CGO). Sessions are stored as JSON documents with the columns
// needed for sweeping and listing pulled out alongside.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/quill/internal/agent"
	"github.com/flemzord/quill/internal/session"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Store is a SQLite-backed session.Store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now for last-activity stamps and sweeps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the database described by cfg and
// migrates its schema. The caller must Close the store.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}
	// SQLite serialises writes.
	db.SetMaxOpenConns(1)

	if *cfg.WAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put implements session.Store.
func (s *Store) Put(ctx context.Context, sess *agent.Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("sqlite: put: missing session id")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("sqlite: marshal session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, query, success, data, last_activity)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			query = excluded.query,
			success = excluded.success,
			data = excluded.data,
			last_activity = excluded.last_activity`,
		sess.ID, sess.Query, boolInt(sess.Success), string(data), s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: put session: %w", err)
	}
	return nil
}

// Get implements session.Store.
func (s *Store) Get(ctx context.Context, id string) (session.Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT data, last_activity FROM sessions WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Entry{}, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	return e, err
}

// Delete implements session.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	return nil
}

// Clear implements session.Store.
func (s *Store) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions")
	if err != nil {
		return 0, fmt.Errorf("sqlite: clear sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: clear sessions: %w", err)
	}
	return int(n), nil
}

// Sweep implements session.Store.
func (s *Store) Sweep(ctx context.Context, maxIdle time.Duration) (int, error) {
	cutoff := s.now().Add(-maxIdle).UnixNano()
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE last_activity < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite: sweep sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: sweep sessions: %w", err)
	}
	return int(n), nil
}

// List implements session.Store.
func (s *Store) List(ctx context.Context) ([]session.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT data, last_activity FROM sessions ORDER BY last_activity DESC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []session.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list rows: %w", err)
	}
	return out, nil
}

// Len implements session.Store.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count sessions: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (session.Entry, error) {
	var (
		data string
		last int64
	)
	if err := sc.Scan(&data, &last); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Entry{}, err
		}
		return session.Entry{}, fmt.Errorf("sqlite: scan session: %w", err)
	}

	var sess agent.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return session.Entry{}, fmt.Errorf("sqlite: unmarshal session: %w", err)
	}
	return session.Entry{Session: &sess, LastActivity: time.Unix(0, last).UTC()}, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ session.Store = (*Store)(nil)
