package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/character"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/event"
)

// Session is one active character.
type Session struct {
	UID   uuid.UUID
	Name  string
	State *character.State

	mu      sync.Mutex
	watcher *Outbox
}

// Watch attaches o as the session's event watcher, replacing and closing any previous one.
func (s *Session) Watch(o *Outbox) {
	s.mu.Lock()
	prev := s.watcher
	s.watcher = o
	s.mu.Unlock()
	if prev != nil && prev != o {
		_ = prev.Close()
	}
}

// Unwatch detaches o if it is the current watcher.
func (s *Session) Unwatch(o *Outbox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == o {
		s.watcher = nil
	}
}

func (s *Session) push(e event.Event) {
	s.mu.Lock()
	w := s.watcher
	s.mu.Unlock()
	if w != nil {
		_ = w.Push(e)
	}
}

// Manager is the roster of active characters, indexed by UID and by name.
// All methods are safe for concurrent use. Manager implements event.Sink by
// forwarding each event to the watcher of the character it concerns.
type Manager struct {
	mu     sync.RWMutex
	byUID  map[uuid.UUID]*Session
	byName map[string]uuid.UUID // lower-cased name → uid
}

// NewManager creates an empty session Manager.
func NewManager() *Manager {
	return &Manager{
		byUID:  make(map[uuid.UUID]*Session),
		byName: make(map[string]uuid.UUID),
	}
}

// Add registers cs.
//
// Precondition: cs and cs.Character must be non-nil.
// Postcondition: Returns the created Session, or an error if the UID or name (case-insensitive) is taken.
func (m *Manager) Add(cs *character.State) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	uid, name := cs.Character.UID, cs.Character.Name
	if _, exists := m.byUID[uid]; exists {
		return nil, fmt.Errorf("character %s already active", uid)
	}
	key := strings.ToLower(name)
	if _, exists := m.byName[key]; exists {
		return nil, fmt.Errorf("character name %q already active", name)
	}
	sess := &Session{UID: uid, Name: name, State: cs}
	m.byUID[uid] = sess
	m.byName[key] = uid
	return sess, nil
}

// Remove drops the session for uid and closes its watcher.
//
// Postcondition: Returns an error if uid is not active.
func (m *Manager) Remove(uid uuid.UUID) error {
	m.mu.Lock()
	sess, exists := m.byUID[uid]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("character %s not found", uid)
	}
	delete(m.byUID, uid)
	delete(m.byName, strings.ToLower(sess.Name))
	m.mu.Unlock()

	sess.mu.Lock()
	w := sess.watcher
	sess.watcher = nil
	sess.mu.Unlock()
	if w != nil {
		_ = w.Close()
	}
	return nil
}

// Get returns the session for uid.
func (m *Manager) Get(uid uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.byUID[uid]
	return sess, ok
}

// GetByName returns the session whose character name matches name case-insensitively.
func (m *Manager) GetByName(name string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uid, ok := m.byName[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return m.byUID[uid], true
}

// All returns every session sorted by name.
func (m *Manager) All() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.byUID))
	for _, s := range m.byUID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUID)
}

// Emit implements event.Sink.
func (m *Manager) Emit(e event.Event) {
	m.mu.RLock()
	sess, ok := m.byUID[e.CharacterUID]
	m.mu.RUnlock()
	if ok {
		sess.push(e)
	}
}
