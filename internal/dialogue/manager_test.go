package dialogue

import (
	"context"
	"testing"
	"time"

	"github.com/mzampetti/complybot/internal/responses"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(responses.NewMemoryStore(), time.Minute)
	s := m.Create(context.Background(), "u1")
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}
	if s.Record.Name == "" {
		t.Fatalf("session should start from the seeded profile")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "u1" || got.Status() != StatusActive {
		t.Fatalf("unexpected session state: id=%s user=%s status=%s", got.ID, got.UserID, got.Status())
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status() != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status(), StatusEnded)
	}
}

func TestManagerGetUnknown(t *testing.T) {
	m := NewManager(responses.NewMemoryStore(), time.Minute)
	if _, err := m.Get("nope"); err != ErrNotFound {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(responses.NewMemoryStore(), 30*time.Millisecond)
	s := m.Create(context.Background(), "u1")

	expired := make(chan string, 1)
	m.SetExpireHook(func(es *Session) {
		select {
		case expired <- es.ID:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case id := <-expired:
		if id != s.ID {
			t.Fatalf("expired ID = %q, want %q", id, s.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("janitor did not expire the session")
	}
	if s.Status() != StatusEnded {
		t.Fatalf("Status = %q, want %q", s.Status(), StatusEnded)
	}
}

func TestManagerActiveCount(t *testing.T) {
	m := NewManager(responses.NewMemoryStore(), time.Minute)
	a := m.Create(context.Background(), "u1")
	m.Create(context.Background(), "u2")
	if got := m.ActiveCount(); got != 2 {
		t.Fatalf("ActiveCount() = %d, want 2", got)
	}
	if _, err := m.End(a.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if got := m.ActiveCount(); got != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", got)
	}
}
