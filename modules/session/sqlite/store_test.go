package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/flemzord/quill/internal/session"
	"github.com/flemzord/quill/internal/session/sessiontest"
	"github.com/flemzord/quill/modules/session/sqlite"
)

func openTestStore(t *testing.T, path string, now func() time.Time) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), sqlite.Config{Path: path}, sqlite.WithClock(now))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	sessiontest.Run(t, func(t *testing.T, now func() time.Time) session.Store {
		return openTestStore(t, filepath.Join(t.TempDir(), "sessions.db"), now)
	})
}

func TestOpen_CreatesDirectoryAndPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "sessions.db")
	clock := sessiontest.NewClock()

	first, err := sqlite.Open(ctx, sqlite.Config{Path: path}, sqlite.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.Put(ctx, sessiontest.NewSession("session_keep", "q", clock.Now())); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := openTestStore(t, path, clock.Now)
	got, err := second.Get(ctx, "session_keep")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Session.Steps[0].ToolCalls[0].Duration != time.Second {
		t.Errorf("tool call duration = %v, want 1s", got.Session.Steps[0].ToolCalls[0].Duration)
	}
}

func TestOpen_RejectsNegativeBusyTimeout(t *testing.T) {
	_, err := sqlite.Open(context.Background(), sqlite.Config{
		Path:        filepath.Join(t.TempDir(), "x.db"),
		BusyTimeout: -1,
	})
	if err == nil {
		t.Fatal("expected error for negative busy_timeout")
	}
}
