package store

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps users and messages in process memory. It backs unit
// tests and mirrors the SQLiteStore semantics, including canonical Unix
// second suspension timestamps.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]*User
	messages map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*User),
		messages: make(map[string][]Message),
	}
}

func (s *MemoryStore) CreateUser(username, passwordHash, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return ErrUserExists
	}
	s.users[username] = &User{
		Username:     username,
		PasswordHash: passwordHash,
		Email:        email,
	}
	return nil
}

func (s *MemoryStore) GetUser(username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryStore) SetOnline(username string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return ErrUserNotFound
	}
	user.Online = online
	return nil
}

func (s *MemoryStore) SetSuspended(username string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return ErrUserNotFound
	}
	user.Suspended = true
	user.SuspendedUntil = time.Unix(until.Unix(), 0)
	return nil
}

func (s *MemoryStore) ClearSuspension(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return nil
	}
	user.Suspended = false
	user.SuspendedUntil = time.Time{}
	return nil
}

func (s *MemoryStore) ListUsers() ([]UserPresence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]UserPresence, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, UserPresence{Username: user.Username, Online: user.Online})
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users, nil
}

func (s *MemoryStore) Append(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.SessionToken] = append(s.messages[msg.SessionToken], msg)
	return nil
}

func (s *MemoryStore) History(sessionToken string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.messages[sessionToken]
	out := make([]Message, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}
