package storage

import (
	"context"
	"time"

	"github.com/mcoot/ari-accounts/internal/model"
)

// UserMutation edits a user inside a storage transaction.
// Returning an error aborts the transaction and leaves the stored user unchanged.
type UserMutation func(user *model.User) error

// Storage defines the interface for data persistence
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, username string) (*model.User, error)
	UpdateUser(ctx context.Context, username string, mutate UserMutation) (*model.User, error)
	// DeleteUser removes the user and every session it owns in one transaction
	DeleteUser(ctx context.Context, username string) error

	// Session operations
	SaveSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id model.SessionID) (*model.Session, error)
	DeleteSession(ctx context.Context, id model.SessionID) error

	// Captcha challenge operations, keyed by client session id
	SaveChallenge(ctx context.Context, clientID string, challenge *model.Challenge, ttl time.Duration) error
	// TakeChallenge atomically reads and deletes the challenge
	TakeChallenge(ctx context.Context, clientID string) (*model.Challenge, error)

	Close() error
}
