package responses

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type failingStore struct {
	loadErr error
	saveErr error
}

func (s *failingStore) Load(context.Context, string) ([]Response, error) {
	return nil, s.loadErr
}
func (s *failingStore) Save(context.Context, string, []Response) error {
	return s.saveErr
}
func (s *failingStore) Close() error { return nil }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestRecorderAppendsAndPersists(t *testing.T) {
	store := NewMemoryStore()
	r := NewRecorder(context.Background(), store, "responses:u1")

	r.Record("Is your business name \"Yngwie's Guitars\"?", "Yngwie's Guitars", "name")
	r.Record("Updated business name", "Blackstar Amps", "name")

	if got := len(r.All()); got != 2 {
		t.Fatalf("All() len = %d, want 2", got)
	}

	waitFor(t, func() bool {
		list, err := store.Load(context.Background(), "responses:u1")
		return err == nil && len(list) == 2
	})
}

func TestRecorderResumesPriorHistory(t *testing.T) {
	store := NewMemoryStore()
	first := NewRecorder(context.Background(), store, "responses:u1")
	first.Record("q1", "a1", "name")
	waitFor(t, func() bool {
		list, _ := store.Load(context.Background(), "responses:u1")
		return len(list) == 1
	})

	second := NewRecorder(context.Background(), store, "responses:u1")
	if got := len(second.All()); got != 1 {
		t.Fatalf("resumed recorder should start with prior history, got %d entries", got)
	}
	second.Record("q2", "a2", "email")
	if got := len(second.All()); got != 2 {
		t.Fatalf("All() len = %d, want 2", got)
	}
}

func TestRecorderDegradesOnSaveFailure(t *testing.T) {
	store := &failingStore{saveErr: errors.New("disk gone")}
	r := NewRecorder(context.Background(), store, "responses:u1")

	failures := make(chan error, 4)
	r.OnPersistFailure = func(err error) { failures <- err }

	r.Record("q1", "a1", "name")
	waitFor(t, r.Degraded)

	// Memory keeps working after degradation, with no further hook calls.
	r.Record("q2", "a2", "email")
	if got := len(r.All()); got != 2 {
		t.Fatalf("All() len = %d, want 2", got)
	}

	select {
	case <-failures:
	case <-time.After(2 * time.Second):
		t.Fatalf("persist failure hook was not invoked")
	}
	select {
	case err := <-failures:
		t.Fatalf("hook invoked more than once: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

// stallFirstStore delays its first Save so an older snapshot's write is
// still in flight while newer ones arrive.
type stallFirstStore struct {
	delay time.Duration

	mu      sync.Mutex
	stalled bool
	saved   []Response
}

func (s *stallFirstStore) Load(context.Context, string) ([]Response, error) { return nil, nil }

func (s *stallFirstStore) Save(_ context.Context, _ string, list []Response) error {
	s.mu.Lock()
	first := !s.stalled
	s.stalled = true
	s.mu.Unlock()
	if first {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	s.saved = append([]Response(nil), list...)
	s.mu.Unlock()
	return nil
}

func (s *stallFirstStore) Close() error { return nil }

func (s *stallFirstStore) savedLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func TestSlowSaveCannotClobberNewerSnapshot(t *testing.T) {
	store := &stallFirstStore{delay: 150 * time.Millisecond}
	r := NewRecorder(context.Background(), store, "responses:u1")

	r.Record("Is your business name \"Yngwie's Guitars\"?", "Yngwie's Guitars", "name")
	r.Record("What's the best email address for your business?", "info@yngwiesfrets.com", "email")

	waitFor(t, func() bool { return store.savedLen() == 2 })

	// Let any straggling save land, then confirm the durable list still
	// holds both entries.
	time.Sleep(2 * store.delay)
	if got := store.savedLen(); got != 2 {
		t.Fatalf("durable list holds %d entries after saves settled, want 2", got)
	}
	if r.Degraded() {
		t.Fatalf("slow saves must not degrade the recorder")
	}
}

func TestRecorderStartsEmptyOnLoadFailure(t *testing.T) {
	store := &failingStore{loadErr: errors.New("corrupt row")}
	r := NewRecorder(context.Background(), store, "responses:u1")
	if !r.Degraded() {
		t.Fatalf("recorder should degrade when history cannot be loaded")
	}
	if len(r.All()) != 0 {
		t.Fatalf("recorder should start empty")
	}
}

func TestLatestPicksMaxTimestamp(t *testing.T) {
	now := time.Now().UTC()
	list := []Response{
		{ID: "1", Answer: "Illinois", Field: "jurisdiction", Timestamp: now},
		{ID: "2", Answer: "Texas", Field: "jurisdiction", Timestamp: now.Add(time.Minute)},
		{ID: "3", Answer: "info@yngwiesfrets.com", Field: "email", Timestamp: now.Add(2 * time.Minute)},
	}

	got := Latest(list, "jurisdiction")
	if got == nil || got.Answer != "Texas" {
		t.Fatalf("Latest(jurisdiction) = %+v, want the newest entry", got)
	}
	if Latest(list, "website") != nil {
		t.Fatalf("Latest on an absent tag should be nil")
	}
}
