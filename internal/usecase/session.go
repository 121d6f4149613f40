package usecase

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"walletchat/internal/domain"
)

// Session is one conversation: ordered message history, the rendered UI entry
// list, and at most one pending send confirmation. Messages are immutable once
// appended; UI entries may be replaced wholesale (progress updates) but never
// patched in place.
type Session struct {
	mu        sync.RWMutex
	ID        string           `json:"id"`
	Msgs      []domain.Message `json:"messages"`
	Entries   []domain.UIEntry `json:"entries"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`

	pending *domain.SendRequest
}

// NewSession creates an empty session. An empty id gets a generated ULID.
func NewSession(id string) *Session {
	now := time.Now()
	if id == "" {
		id = generateULID(now)
	}
	return &Session{
		ID:        id,
		Msgs:      make([]domain.Message, 0),
		Entries:   make([]domain.UIEntry, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func generateULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// AddMessage appends a message and updates the timestamp (thread-safe).
func (s *Session) AddMessage(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = generateULID(time.Now())
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.Msgs = append(s.Msgs, msg)
	s.UpdatedAt = time.Now()
}

// Messages returns a copy of the message history (thread-safe).
func (s *Session) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]domain.Message, len(s.Msgs))
	copy(cp, s.Msgs)
	return cp
}

// Truncate keeps only the last N messages.
func (s *Session) Truncate(maxMessages int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxMessages <= 0 || len(s.Msgs) <= maxMessages {
		return
	}
	s.Msgs = s.Msgs[len(s.Msgs)-maxMessages:]
}

// AppendEntry appends a UI entry in strict call order and returns its ID.
func (s *Session) AppendEntry(e domain.UIEntry) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = generateULID(time.Now())
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.Entries = append(s.Entries, e)
	s.UpdatedAt = time.Now()
	return e.ID
}

// ReplaceEntry swaps the entry with the given ID for a new rendering.
// Returns false when no entry has that ID.
func (s *Session) ReplaceEntry(id string, e domain.UIEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Entries {
		if s.Entries[i].ID == id {
			e.ID = id
			if e.CreatedAt.IsZero() {
				e.CreatedAt = s.Entries[i].CreatedAt
			}
			s.Entries[i] = e
			s.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// UIEntries returns a copy of the rendered entry list (thread-safe).
func (s *Session) UIEntries() []domain.UIEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]domain.UIEntry, len(s.Entries))
	copy(cp, s.Entries)
	return cp
}

// SetPending stores the send awaiting user confirmation, replacing any
// previous one.
func (s *Session) SetPending(req *domain.SendRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = req
	s.UpdatedAt = time.Now()
}

// TakePending returns the pending send and clears it, or nil when none is
// pending.
func (s *Session) TakePending() *domain.SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := s.pending
	s.pending = nil
	return req
}

// Pending reports the send awaiting confirmation without consuming it.
func (s *Session) Pending() *domain.SendRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// SessionManager holds all live sessions. Sessions exist only in process
// memory and are lost on restart.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	bus      domain.EventBus
}

// NewSessionManager creates a session manager. bus may be nil.
func NewSessionManager(bus domain.EventBus) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		bus:      bus,
	}
}

// GetOrCreate returns an existing session or creates a new one.
func (sm *SessionManager) GetOrCreate(id string) *Session {
	sm.mu.Lock()
	s, ok := sm.sessions[id]
	if !ok {
		s = NewSession(id)
		sm.sessions[s.ID] = s
	}
	sm.mu.Unlock()

	if !ok && sm.bus != nil {
		sm.bus.Publish(context.Background(), domain.Event{
			Type:      domain.EventSessionCreated,
			Timestamp: time.Now(),
			SessionID: s.ID,
		})
	}
	return s
}

// Get returns a session by ID.
func (sm *SessionManager) Get(id string) (*Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.sessions[id]
	if !ok {
		return nil, domain.NewDomainError("SessionManager.Get", domain.ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete removes a session.
func (sm *SessionManager) Delete(id string) {
	sm.mu.Lock()
	_, ok := sm.sessions[id]
	delete(sm.sessions, id)
	sm.mu.Unlock()

	if ok && sm.bus != nil {
		sm.bus.Publish(context.Background(), domain.Event{
			Type:      domain.EventSessionDeleted,
			Timestamp: time.Now(),
			SessionID: id,
		})
	}
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// PruneStale removes sessions idle longer than age and returns how many were
// dropped.
func (sm *SessionManager) PruneStale(age time.Duration) int {
	if age <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-age)

	sm.mu.Lock()
	var stale []string
	for id, s := range sm.sessions {
		s.mu.RLock()
		updated := s.UpdatedAt
		s.mu.RUnlock()
		if updated.Before(cutoff) {
			stale = append(stale, id)
			delete(sm.sessions, id)
		}
	}
	sm.mu.Unlock()

	if sm.bus != nil {
		for _, id := range stale {
			sm.bus.Publish(context.Background(), domain.Event{
				Type:      domain.EventSessionDeleted,
				Timestamp: time.Now(),
				SessionID: id,
			})
		}
	}
	return len(stale)
}
