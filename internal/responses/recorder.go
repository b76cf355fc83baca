package responses

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mzampetti/complybot/internal/reliability"
)

const (
	persistTimeout  = 5 * time.Second
	persistAttempts = 3
	persistBackoff  = 50 * time.Millisecond
	persistCap      = 200 * time.Millisecond
)

// Recorder accumulates responses for one session and mirrors the full list
// to the store after every append. Persistence is best-effort: a failed
// write is logged, counted, and the recorder degrades to memory-only for
// the rest of the session. Saves are serialized and sequence-checked so a
// slow write of an older snapshot can never overwrite a newer one.
type Recorder struct {
	mu       sync.Mutex
	store    Store
	key      string
	list     []Response
	seq      uint64
	degraded bool

	// persistMu serializes saves; savedSeq is guarded by it.
	persistMu sync.Mutex
	savedSeq  uint64

	// OnPersistFailure is invoked once per failed save, outside the lock.
	OnPersistFailure func(err error)
}

// NewRecorder loads any previously persisted list for key and uses it as
// the starting state. A load failure is not fatal; the recorder starts
// empty and memory-only.
func NewRecorder(ctx context.Context, store Store, key string) *Recorder {
	r := &Recorder{store: store, key: key}
	prior, err := store.Load(ctx, key)
	if err != nil {
		log.Printf("response log load failed for %s, continuing in memory: %v", key, err)
		r.degraded = true
		return r
	}
	r.list = prior
	return r
}

// Record appends one immutable entry and kicks off a fire-and-forget save
// of the whole accumulated list.
func (r *Recorder) Record(question, answer, field string) Response {
	entry := Response{
		ID:        uuid.NewString(),
		Question:  question,
		Answer:    answer,
		Timestamp: time.Now().UTC(),
		Field:     field,
	}

	r.mu.Lock()
	r.list = append(r.list, entry)
	snapshot := make([]Response, len(r.list))
	copy(snapshot, r.list)
	r.seq++
	seq := r.seq
	degraded := r.degraded
	r.mu.Unlock()

	if !degraded {
		go r.persist(snapshot, seq)
	}
	return entry
}

func (r *Recorder) persist(snapshot []Response, seq uint64) {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	if seq <= r.savedSeq {
		// A newer snapshot already reached the store.
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	err := reliability.Retry(ctx, persistAttempts, persistBackoff, persistCap, func(ctx context.Context) error {
		return r.store.Save(ctx, r.key, snapshot)
	})
	if err != nil {
		r.mu.Lock()
		already := r.degraded
		r.degraded = true
		r.mu.Unlock()
		if !already {
			log.Printf("response log save failed for %s, degrading to memory-only: %v", r.key, err)
			if r.OnPersistFailure != nil {
				r.OnPersistFailure(err)
			}
		}
		return
	}
	r.savedSeq = seq
}

// All returns a copy of the accumulated list in append order.
func (r *Recorder) All() []Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Response, len(r.list))
	copy(out, r.list)
	return out
}

// Degraded reports whether persistence has been abandoned for the session.
func (r *Recorder) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}
