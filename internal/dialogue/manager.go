package dialogue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mzampetti/complybot/internal/chatlog"
	"github.com/mzampetti/complybot/internal/record"
	"github.com/mzampetti/complybot/internal/responses"
)

var ErrNotFound = errors.New("session not found")

// Manager owns the live session set. Unlike a read-model registry it hands
// out the live *Session: the engine mutates conversation state in place,
// serialized by Session.Do.
type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	sessionByUser     map[string]string
	store             responses.Store
	inactivityTimeout time.Duration
	onExpire          func(*Session)
	onPersistFailure  func(error)
}

func NewManager(store responses.Store, inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		sessionByUser:     make(map[string]string),
		store:             store,
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// SetPersistFailureHook observes response-log write failures across all
// sessions, for metrics.
func (m *Manager) SetPersistFailureHook(hook func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPersistFailure = hook
}

// Create starts a session seeded from the stored business profile. The
// response log is keyed by user so it survives session restarts; anonymous
// sessions fall back to a per-session key.
func (m *Manager) Create(ctx context.Context, userID string) *Session {
	now := time.Now().UTC()
	id := uuid.NewString()
	key := userID
	if key == "" {
		key = id
	}
	s := &Session{
		ID:             id,
		UserID:         userID,
		StartedAt:      now,
		status:         StatusActive,
		lastActivityAt: now,
		Record:         record.Seed(),
		Transcript:     chatlog.NewTranscript(),
		Recorder:       responses.NewRecorder(ctx, m.store, "responses:"+key),
	}
	m.mu.RLock()
	s.Recorder.OnPersistFailure = m.onPersistFailure
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	if userID != "" {
		m.sessionByUser[userID] = s.ID
	}
	return s
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok && s.UserID != "" {
		delete(m.sessionByUser, s.UserID)
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.end()
	return s, nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status() == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	candidates := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, s := range candidates {
		if s.Status() != StatusActive {
			continue
		}
		if now.Sub(s.LastActivity()) < m.inactivityTimeout {
			continue
		}
		s.end()
		expired = append(expired, s)
	}

	if len(expired) > 0 {
		m.mu.Lock()
		for _, s := range expired {
			if s.UserID != "" && m.sessionByUser[s.UserID] == s.ID {
				delete(m.sessionByUser, s.UserID)
			}
		}
		m.mu.Unlock()
	}

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}
