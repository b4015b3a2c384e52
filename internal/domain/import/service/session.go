package service

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/mapping"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/wizard"
	"github.com/FACorreiaa/portfolio-importer/pkg/metrics"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("import session not found")

// session is one live wizard. The state snapshot is replaced atomically under
// the session mutex; pipeline stages that leave the process (ledger calls)
// release the lock for the duration of the call and re-merge on return.
type session struct {
	mu sync.Mutex

	id        uuid.UUID
	state     wizard.State
	fileName  string
	fileData  []byte
	mapping   *mapping.ImportMapping
	touchedAt time.Time
}

// snapshot returns the current state under lock.
func (s *session) snapshot() wizard.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// update applies fn to the current state under lock and installs the result.
func (s *session) update(fn func(wizard.State) wizard.State) wizard.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fn(s.state)
	return s.state
}

// SessionStore holds live wizard sessions in memory. Sessions expire after
// the TTL of inactivity and are reaped by the purge job.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
	ttl      time.Duration
}

// NewSessionStore creates a store with the given inactivity TTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*session),
		ttl:      ttl,
	}
}

// Create opens a session for an account and returns its id.
func (st *SessionStore) Create(accountID uuid.UUID) *session {
	s := &session{
		id:        uuid.New(),
		state:     wizard.NewState(accountID),
		touchedAt: time.Now(),
	}

	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()

	metrics.ActiveSessions.Set(float64(st.Len()))
	return s
}

// Get returns a live session and refreshes its activity timestamp.
func (st *SessionStore) Get(id uuid.UUID) (*session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	s.touchedAt = time.Now()
	s.mu.Unlock()
	return s, nil
}

// Delete removes a session.
func (st *SessionStore) Delete(id uuid.UUID) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
	metrics.ActiveSessions.Set(float64(st.Len()))
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Purge drops sessions idle past the TTL and returns how many were removed.
// The cron scheduler calls this periodically.
func (st *SessionStore) Purge(now time.Time) int {
	st.mu.Lock()
	removed := 0
	for id, s := range st.sessions {
		s.mu.Lock()
		idle := now.Sub(s.touchedAt)
		s.mu.Unlock()
		if idle > st.ttl {
			delete(st.sessions, id)
			removed++
		}
	}
	st.mu.Unlock()

	metrics.ActiveSessions.Set(float64(st.Len()))
	return removed
}
