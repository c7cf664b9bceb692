// Package session provides the in-memory conversation store.
//
// Sessions live only in process memory. A restart loses them all.
// Each Store operation is atomic, but the store does not serialize a whole
// chat exchange: two concurrent requests on one session may interleave
// their user and model turns.
package session

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/chat-relay/internal/domain"
)

const (
	// DefaultHistoryCap is the number of turns retained per session.
	DefaultHistoryCap = 20
	// DefaultPromptWindow is the number of recent turns rendered into a prompt.
	DefaultPromptWindow = 8
	// DefaultTTL is the inactivity period after which a session is swept.
	DefaultTTL = 24 * time.Hour
)

type entry struct {
	history      *history
	instructions string
	lastActivity time.Time
}

// Store owns all sessions and their turns. Callers only ever receive copies.
type Store struct {
	mu         sync.Mutex
	sessions   map[string]*entry
	historyCap int
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithHistoryCap sets the maximum number of turns kept per session.
func WithHistoryCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historyCap = n
		}
	}
}

// WithClock overrides the time source used for activity tracking.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for sweep and lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions:   make(map[string]*entry),
		historyCap: DefaultHistoryCap,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HistoryCap returns the per-session turn limit.
func (s *Store) HistoryCap() int {
	return s.historyCap
}

// touch returns the entry for id, creating it if needed, and marks activity.
// Caller must hold s.mu.
func (s *Store) touch(id string) *entry {
	e, ok := s.sessions[id]
	if !ok {
		e = &entry{history: newHistory(s.historyCap)}
		s.sessions[id] = e
	}
	e.lastActivity = s.now()
	return e
}

func (e *entry) snapshot(id string) domain.Session {
	return domain.Session{
		ID:                 id,
		History:            e.history.all(),
		CustomInstructions: e.instructions,
		LastActivity:       e.lastActivity,
	}
}

// GetOrCreate returns a copy of the session, creating an empty one if id is unseen.
func (s *Store) GetOrCreate(id string) domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touch(id).snapshot(id)
}

// Get returns a copy of the session if it exists.
func (s *Store) Get(id string) (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	e.lastActivity = s.now()
	return e.snapshot(id), true
}

// AppendUserTurn appends a user turn, evicting the oldest turns beyond the cap.
func (s *Store) AppendUserTurn(id, text string) {
	s.append(id, domain.Turn{Role: domain.RoleUser, Text: text})
}

// AppendModelTurn appends a model turn, evicting the oldest turns beyond the cap.
func (s *Store) AppendModelTurn(id, text string) {
	s.append(id, domain.Turn{Role: domain.RoleModel, Text: text})
}

func (s *Store) append(id string, t domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(id).history.push(t)
}

// SetInstructions overwrites the custom instructions of a session.
func (s *Store) SetInstructions(id, text string) error {
	if strings.TrimSpace(text) == "" {
		return domain.Validation("instructions are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(id).instructions = text
	return nil
}

// Instructions returns the stored custom instructions, or "".
func (s *Store) Instructions(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		return e.instructions
	}
	return ""
}

// Clear empties the history of a session. Custom instructions are kept.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(id).history.reset()
}

// ForgetInstructions removes the custom instructions of a session.
func (s *Store) ForgetInstructions(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(id).instructions = ""
}

// Windowed returns a copy of the most recent maxTurns turns, oldest first.
// It does not create the session.
func (s *Store) Windowed(id string, maxTurns int) []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return []domain.Turn{}
	}
	e.lastActivity = s.now()
	return e.history.last(maxTurns)
}

// SweepExpired removes sessions idle for longer than ttl and returns how many
// were removed.
func (s *Store) SweepExpired(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if now.Sub(e.lastActivity) > ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close drops every session. The store stays usable and starts empty.
func (s *Store) Close() {
	s.mu.Lock()
	n := len(s.sessions)
	s.sessions = make(map[string]*entry)
	s.mu.Unlock()
	s.logger.Info("Session store closed", "sessions_dropped", n)
}
