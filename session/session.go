// Package session keeps per-user state: the ledger source, the question
// history and the lock that serializes questions.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"fenix-advisor/backend/datasource"
)

type Entry struct {
	Question string    `json:"question"`
	AskedAt  time.Time `json:"asked_at"`
}

type Session struct {
	ID        string
	CreatedAt time.Time

	ask sync.Mutex

	mu       sync.RWMutex
	source   datasource.Source
	history  []Entry
	limit    int
	lastUsed time.Time
}

// Begin blocks until no other question is running in this session and
// returns the function that releases it.
func (s *Session) Begin() func() {
	s.ask.Lock()
	return s.ask.Unlock
}

func (s *Session) Source() datasource.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

func (s *Session) SetSource(src datasource.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = src
}

// Remember records a question, keeping only the most recent ones.
func (s *Session) Remember(question string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Entry{Question: question, AskedAt: at})
	if over := len(s.history) - s.limit; over > 0 {
		s.history = append([]Entry(nil), s.history[over:]...)
	}
}

// History returns the remembered questions, oldest first.
func (s *Session) History() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsed
}

// Store holds live sessions in memory.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	historySize int
	ttl         time.Duration
	newSource   func() datasource.Source
	now         func() time.Time
}

// NewStore creates a store. newSource supplies each new session's initial
// source and may return nil when sessions start empty.
func NewStore(historySize int, ttl time.Duration, newSource func() datasource.Source) *Store {
	return &Store{
		sessions:    map[string]*Session{},
		historySize: historySize,
		ttl:         ttl,
		newSource:   newSource,
		now:         time.Now,
	}
}

func (st *Store) Create() *Session {
	now := st.now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		limit:     st.historySize,
		lastUsed:  now,
	}
	if st.newSource != nil {
		s.source = st.newSource()
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns a live session and marks it used. Expired sessions are dropped.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return nil, false
	}
	now := st.now()
	if st.ttl > 0 && now.Sub(s.idleSince()) > st.ttl {
		st.Delete(id)
		return nil, false
	}
	s.touch(now)
	return s, true
}

func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Sweep removes idle sessions and reports how many were dropped.
func (st *Store) Sweep() int {
	if st.ttl <= 0 {
		return 0
	}
	now := st.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, s := range st.sessions {
		if now.Sub(s.idleSince()) > st.ttl {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
