package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mcoot/ari-accounts/internal/model"
	"github.com/mcoot/ari-accounts/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	users        map[string]*model.User
	sessions     map[model.SessionID]*model.Session
	userSessions map[string]map[model.SessionID]struct{}
	challenges   map[string]*challengeEntry
}

type challengeEntry struct {
	challenge *model.Challenge
	expiresAt time.Time
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users:        make(map[string]*model.User),
		sessions:     make(map[model.SessionID]*model.Session),
		userSessions: make(map[string]map[model.SessionID]struct{}),
		challenges:   make(map[string]*challengeEntry),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Close is a no-op for in-memory storage
func (s *Storage) Close() error {
	return nil
}

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return model.ErrUserExists
	}
	s.users[user.Username] = user.Clone()
	return nil
}

func (s *Storage) GetUser(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return user.Clone(), nil
}

func (s *Storage) UpdateUser(ctx context.Context, username string, mutate storage.UserMutation) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[username]
	if !ok {
		return nil, model.ErrUserNotFound
	}

	// Mutate a copy so a failed mutation leaves the stored user untouched
	updated := current.Clone()
	if err := mutate(updated); err != nil {
		return nil, err
	}
	updated.Username = current.Username

	s.users[username] = updated
	return updated.Clone(), nil
}

func (s *Storage) DeleteUser(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return model.ErrUserNotFound
	}
	for id := range s.userSessions[username] {
		delete(s.sessions, id)
	}
	delete(s.userSessions, username)
	delete(s.users, username)
	return nil
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[session.Username]; !ok {
		return model.ErrUserNotFound
	}
	stored := *session
	s.sessions[session.ID] = &stored
	if s.userSessions[session.Username] == nil {
		s.userSessions[session.Username] = make(map[model.SessionID]struct{})
	}
	s.userSessions[session.Username][session.ID] = struct{}{}
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	result := *session
	return &result, nil
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil
	}
	delete(s.sessions, id)
	if ids := s.userSessions[session.Username]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.userSessions, session.Username)
		}
	}
	return nil
}

// Captcha challenge operations

func (s *Storage) SaveChallenge(ctx context.Context, clientID string, challenge *model.Challenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *challenge
	s.challenges[clientID] = &challengeEntry{
		challenge: &stored,
		expiresAt: time.Now().Add(ttl),
	}
	s.sweepChallengesLocked()
	return nil
}

func (s *Storage) TakeChallenge(ctx context.Context, clientID string) (*model.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.challenges[clientID]
	if !ok {
		return nil, model.ErrChallengeNotFound
	}
	delete(s.challenges, clientID)
	if time.Now().After(entry.expiresAt) {
		return nil, model.ErrChallengeNotFound
	}
	return entry.challenge, nil
}

// sweepChallengesLocked drops challenges whose TTL has passed. Must hold s.mu.
func (s *Storage) sweepChallengesLocked() {
	now := time.Now()
	for id, entry := range s.challenges {
		if now.After(entry.expiresAt) {
			delete(s.challenges, id)
		}
	}
}
