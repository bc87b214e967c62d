// Package sessiontest holds a behavioral test suite shared by every
// session.Store backend.
package sessiontest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/quill/internal/agent"
	"github.com/flemzord/quill/internal/session"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a Clock set to a fixed instant.
func NewClock() *Clock {
	return &Clock{current: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Factory builds an empty store whose timestamps come from now.
type Factory func(t *testing.T, now func() time.Time) session.Store

// NewSession returns a finished session with one step and one tool call.
func NewSession(id, query string, start time.Time) *agent.Session {
	answer := "answer to " + query
	end := start.Add(2 * time.Second)
	return &agent.Session{
		ID:    id,
		Query: query,
		Steps: []agent.Step{{
			Number:      1,
			State:       agent.StateCompleted,
			Thought:     "thinking",
			Observation: &answer,
			Timestamp:   start,
			ToolCalls: []agent.ToolCall{{
				Name:      "lookup",
				Arguments: map[string]any{"q": query},
				Timestamp: start,
				Duration:  time.Second,
				Result:    map[string]any{"ok": true},
				Success:   true,
			}},
		}},
		FinalAnswer:    &answer,
		TotalToolCalls: 1,
		Start:          start,
		End:            &end,
		Success:        true,
	}
}

// Run exercises the full Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGet", func(t *testing.T) {
		clock := NewClock()
		s := newStore(t, clock.Now)

		in := NewSession("session_a", "what", clock.Now())
		if err := s.Put(ctx, in); err != nil {
			t.Fatalf("Put: %v", err)
		}
		in.Query = "mutated after put"

		got, err := s.Get(ctx, "session_a")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Session.Query != "what" {
			t.Errorf("Query = %q, want stored copy", got.Session.Query)
		}
		if !got.LastActivity.Equal(clock.Now()) {
			t.Errorf("LastActivity = %v, want %v", got.LastActivity, clock.Now())
		}
		if !got.Session.Success || got.Session.TotalToolCalls != 1 || len(got.Session.Steps) != 1 {
			t.Errorf("round trip lost fields: %+v", got.Session)
		}
		if got.Session.End == nil || !got.Session.End.Equal(clock.Now().Add(2*time.Second)) {
			t.Errorf("End = %v", got.Session.End)
		}
		if got.Session.Steps[0].ToolCalls[0].Name != "lookup" {
			t.Errorf("tool call lost: %+v", got.Session.Steps[0].ToolCalls)
		}
	})

	t.Run("PutReplaces", func(t *testing.T) {
		clock := NewClock()
		s := newStore(t, clock.Now)

		in := NewSession("session_a", "first", clock.Now())
		_ = s.Put(ctx, in)
		clock.Advance(time.Minute)
		in.Query = "second"
		if err := s.Put(ctx, in); err != nil {
			t.Fatalf("Put: %v", err)
		}

		got, _ := s.Get(ctx, "session_a")
		if got.Session.Query != "second" || !got.LastActivity.Equal(clock.Now()) {
			t.Errorf("got query %q at %v", got.Session.Query, got.LastActivity)
		}
		if n, _ := s.Len(ctx); n != 1 {
			t.Errorf("Len = %d, want 1", n)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		s := newStore(t, NewClock().Now)

		if _, err := s.Get(ctx, "missing"); !errors.Is(err, session.ErrNotFound) {
			t.Errorf("Get err = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "missing"); !errors.Is(err, session.ErrNotFound) {
			t.Errorf("Delete err = %v, want ErrNotFound", err)
		}
	})

	t.Run("DeleteClear", func(t *testing.T) {
		clock := NewClock()
		s := newStore(t, clock.Now)
		for _, id := range []string{"a", "b", "c"} {
			_ = s.Put(ctx, NewSession(id, id, clock.Now()))
		}

		if err := s.Delete(ctx, "b"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if n, _ := s.Len(ctx); n != 2 {
			t.Errorf("Len = %d, want 2", n)
		}
		n, err := s.Clear(ctx)
		if err != nil || n != 2 {
			t.Errorf("Clear = %d, %v, want 2", n, err)
		}
		if n, _ := s.Len(ctx); n != 0 {
			t.Errorf("Len after Clear = %d", n)
		}
	})

	t.Run("Sweep", func(t *testing.T) {
		clock := NewClock()
		s := newStore(t, clock.Now)

		_ = s.Put(ctx, NewSession("old", "old", clock.Now()))
		clock.Advance(20 * time.Minute)
		_ = s.Put(ctx, NewSession("fresh", "fresh", clock.Now()))
		clock.Advance(15 * time.Minute)

		n, err := s.Sweep(ctx, session.DefaultTimeout)
		if err != nil || n != 1 {
			t.Fatalf("Sweep = %d, %v, want 1", n, err)
		}
		if _, err := s.Get(ctx, "old"); !errors.Is(err, session.ErrNotFound) {
			t.Error("expired session survived the sweep")
		}
		if _, err := s.Get(ctx, "fresh"); err != nil {
			t.Errorf("fresh session swept: %v", err)
		}
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		clock := NewClock()
		s := newStore(t, clock.Now)

		for _, id := range []string{"first", "second", "third"} {
			_ = s.Put(ctx, NewSession(id, id, clock.Now()))
			clock.Advance(time.Second)
		}
		_ = s.Put(ctx, NewSession("first", "first", clock.Now()))

		entries, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		want := []string{"first", "third", "second"}
		if len(entries) != len(want) {
			t.Fatalf("List len = %d, want %d", len(entries), len(want))
		}
		for i, id := range want {
			if entries[i].Session.ID != id {
				t.Errorf("entries[%d] = %q, want %q", i, entries[i].Session.ID, id)
			}
		}
	})

	t.Run("Concurrent", func(t *testing.T) {
		s := newStore(t, NewClock().Now)

		var wg sync.WaitGroup
		for i := range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := string(rune('a' + i))
				_ = s.Put(ctx, NewSession(id, id, time.Now()))
				_, _ = s.Get(ctx, id)
				_, _ = s.List(ctx)
			}()
		}
		wg.Wait()

		if n, _ := s.Len(ctx); n != 16 {
			t.Errorf("Len = %d, want 16", n)
		}
	})
}
