package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/ari-accounts/internal/model"
	"github.com/mcoot/ari-accounts/internal/storage"
)

// maxTxRetries bounds optimistic transaction retries on WATCH conflicts
const maxTxRetries = 4

// errTxConflict is returned when a WATCH transaction keeps losing races
var errTxConflict = errors.New("redis transaction conflict")

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	created, err := s.client.SetNX(ctx, s.userKey(user.Username), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return model.ErrUserExists
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, username string) (*model.User, error) {
	return s.getUser(ctx, s.client, username)
}

func (s *Storage) getUser(ctx context.Context, c redis.Cmdable, username string) (*model.User, error) {
	data, err := c.Get(ctx, s.userKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Storage) UpdateUser(ctx context.Context, username string, mutate storage.UserMutation) (*model.User, error) {
	key := s.userKey(username)
	var result *model.User

	err := s.withRetry(ctx, func(tx *redis.Tx) error {
		user, err := s.getUser(ctx, tx, username)
		if err != nil {
			return err
		}

		if err := mutate(user); err != nil {
			return err
		}
		user.Username = username

		data, err := json.Marshal(user)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = user
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Storage) DeleteUser(ctx context.Context, username string) error {
	key := s.userKey(username)
	indexKey := s.userSessionsKey(username)

	return s.withRetry(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return model.ErrUserNotFound
		}

		sessionIDs, err := tx.SMembers(ctx, indexKey).Result()
		if err != nil {
			return err
		}

		// User, owned sessions and the index go in one MULTI block
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			for _, id := range sessionIDs {
				pipe.Del(ctx, s.sessionKey(model.SessionID(id)))
			}
			pipe.Del(ctx, indexKey)
			return nil
		})
		return err
	}, key, indexKey)
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	userKey := s.userKey(session.Username)
	indexKey := s.userSessionsKey(session.Username)
	ttl := session.ExpiresAt.Sub(session.CreatedAt)
	if ttl < 0 {
		ttl = 0
	}

	return s.withRetry(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, userKey).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return model.ErrUserNotFound
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.sessionKey(session.ID), data, ttl)
			pipe.SAdd(ctx, indexKey, string(session.ID))
			return nil
		})
		return err
	}, userKey)
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.sessionKey(id))
	pipe.SRem(ctx, s.userSessionsKey(session.Username), string(id))
	_, err = pipe.Exec(ctx)
	return err
}

// Captcha challenge operations

func (s *Storage) SaveChallenge(ctx context.Context, clientID string, challenge *model.Challenge, ttl time.Duration) error {
	data, err := json.Marshal(challenge)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.challengeKey(clientID), data, ttl).Err()
}

func (s *Storage) TakeChallenge(ctx context.Context, clientID string) (*model.Challenge, error) {
	// GETDEL makes read and delete a single atomic step
	data, err := s.client.GetDel(ctx, s.challengeKey(clientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrChallengeNotFound
		}
		return nil, err
	}

	var challenge model.Challenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return nil, err
	}
	return &challenge, nil
}

// withRetry runs fn in a WATCH transaction on keys, retrying when another
// client modifies a watched key first
func (s *Storage) withRetry(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %v", errTxConflict, keys)
}
