package redis

import (
	"fmt"

	"github.com/mcoot/ari-accounts/internal/model"
)

// userKey returns the Redis key for a User
func (s *Storage) userKey(username string) string {
	return fmt.Sprintf("%s:user:%s", s.cfg.KeyPrefix, username)
}

// sessionKey returns the Redis key for a Session
func (s *Storage) sessionKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%s", s.cfg.KeyPrefix, id)
}

// userSessionsKey returns the Redis key for the SET of session ids owned by a user
func (s *Storage) userSessionsKey(username string) string {
	return fmt.Sprintf("%s:idx:user_sessions:%s", s.cfg.KeyPrefix, username)
}

// challengeKey returns the Redis key for a client's pending captcha challenge
func (s *Storage) challengeKey(clientID string) string {
	return fmt.Sprintf("%s:captcha:%s", s.cfg.KeyPrefix, clientID)
}
