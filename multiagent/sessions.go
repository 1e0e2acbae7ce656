package multiagent

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/atelierlabs/atelier/observability"
)

// Session is one conversation: its accumulated messages and the sandbox
// directory all of its runs share.
type Session struct {
	ID           string    `json:"id"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`

	Sandbox *Sandbox `json:"-"`
}

// SessionManager keeps sessions in memory, keyed by ID. It is safe for
// concurrent use across sessions; within one session, callers must not run
// overlapping streams.
type SessionManager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	sandboxBase string
	logger      zerolog.Logger
}

// NewSessionManager creates a manager whose sessions get sandbox
// directories under sandboxBase.
func NewSessionManager(sandboxBase string) *SessionManager {
	return &SessionManager{
		sessions:    make(map[string]*Session),
		sandboxBase: sandboxBase,
		logger:      observability.WithComponent("sessions"),
	}
}

// GetOrCreate returns the session with the given ID, creating it (and its
// sandbox directory) if needed. An empty ID creates a session under a
// fresh uuid.
func (m *SessionManager) GetOrCreate(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	}
	if s, ok := m.sessions[id]; ok {
		s.LastActivity = time.Now()
		return s, nil
	}

	sb, err := NewSessionSandbox(m.sandboxBase)
	if err != nil {
		return nil, fmt.Errorf("creating session sandbox: %w", err)
	}
	now := time.Now()
	s := &Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		Sandbox:      sb,
	}
	m.sessions[id] = s
	observability.IncActiveSessions()
	m.logger.Info().Str("session", id).Str("sandbox", sb.Root()).Msg("session created")
	return s, nil
}

// Get returns an existing session without creating one.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// AppendUser appends a human message to a session's history.
func (m *SessionManager) AppendUser(id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("unknown session %q", id)
	}
	s.Messages = append(s.Messages, HumanMessage(text))
	s.LastActivity = time.Now()
	return nil
}

// AppendEvents folds a consumed run's events into the session history so
// the next run sees the assistant turns and tool results it produced.
func (m *SessionManager) AppendEvents(id string, events []Event) error {
	msgs := EventsToMessages(events)

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("unknown session %q", id)
	}
	s.Messages = append(s.Messages, msgs...)
	s.LastActivity = time.Now()
	return nil
}

// History returns a copy of a session's messages, safe to hand to a run.
func (m *SessionManager) History(id string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("unknown session %q", id)
	}
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out, nil
}

// Remove forgets a session. The sandbox directory stays on disk; its
// contents are the session's work product.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return
	}
	delete(m.sessions, id)
	observability.DecActiveSessions()
	m.logger.Info().Str("session", id).Msg("session removed")
}

// Len reports how many sessions are live.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
