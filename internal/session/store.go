// Package session keeps reasoning sessions between requests so they can be
// listed, inspected, and deleted. Entries expire after an idle timeout; the
// sweep is driven by callers, there is no background timer.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/flemzord/quill/internal/agent"
)

// DefaultTimeout is the idle time after which a session is swept.
const DefaultTimeout = 30 * time.Minute

// ErrNotFound is returned when no session has the requested id.
var ErrNotFound = errors.New("session: not found")

// Entry is a stored session and the time it was last written.
type Entry struct {
	Session      *agent.Session
	LastActivity time.Time
}

// Store persists session snapshots keyed by session id. Implementations must
// be safe for concurrent use and must not retain or hand out the caller's
// *agent.Session: Put stores a copy and reads return copies.
type Store interface {
	// Put inserts or replaces the session and refreshes its last activity.
	Put(ctx context.Context, s *agent.Session) error

	// Get returns the entry for id, or ErrNotFound.
	Get(ctx context.Context, id string) (Entry, error)

	// Delete removes the entry for id, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Clear removes every entry and returns how many were removed.
	Clear(ctx context.Context) (int, error)

	// Sweep removes entries idle for longer than maxIdle and returns how
	// many were removed.
	Sweep(ctx context.Context, maxIdle time.Duration) (int, error)

	// List returns every entry, most recently active first.
	List(ctx context.Context) ([]Entry, error)

	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)
}
