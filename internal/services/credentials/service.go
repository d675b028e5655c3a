// Package credentials owns user accounts and their password and PIN hashes.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode"
	"unicode/utf8"

	"github.com/mcoot/ari-accounts/internal/dependencies/clock"
	"github.com/mcoot/ari-accounts/internal/dependencies/random"
	"github.com/mcoot/ari-accounts/internal/model"
	"github.com/mcoot/ari-accounts/internal/storage"
)

// PasswordMaxLen bounds passwords so hashing cost stays predictable
const PasswordMaxLen = 1024

// Errors
var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidPIN      = errors.New("invalid pin")
	ErrBioTooLong      = errors.New("bio too long")
	// ErrStoreFailure wraps every persistence failure other than not-found
	ErrStoreFailure = errors.New("credential store failure")

	errCredentialsChanged = errors.New("credentials changed since verification")
)

// Changes describes a profile update. Nil fields are left alone.
type Changes struct {
	Password *string
	Bio      *string
}

// Service manages user records and verifies their secrets
type Service struct {
	storage storage.Storage
	hasher  *Hasher
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
}

// New creates a new credentials Service
func New(storage storage.Storage, hasher *Hasher, clock clock.Clock, random random.Random, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		hasher:  hasher,
		clock:   clock,
		random:  random,
		logger:  logger,
	}
}

// ValidateUsername checks length and rejects whitespace and control characters
func ValidateUsername(username string) error {
	if username == "" || len(username) > model.UsernameMaxLen || !utf8.ValidString(username) {
		return ErrInvalidUsername
	}
	for _, r := range username {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrInvalidUsername
		}
	}
	return nil
}

// ValidatePassword enforces the password policy
func ValidatePassword(password string) error {
	if password == "" || len(password) > PasswordMaxLen {
		return ErrInvalidPassword
	}
	return nil
}

// ValidateBio enforces the bio length limit
func ValidateBio(bio string) error {
	if len(bio) > model.BioMaxLen {
		return ErrBioTooLong
	}
	return nil
}

// GeneratePIN returns a fresh numeric PIN
func (s *Service) GeneratePIN() string {
	return s.random.String(model.PINLen, random.Digits)
}

// Create hashes the password and PIN and stores a new user with the default role
func (s *Service) Create(ctx context.Context, username, password, pin string) (*model.User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if len(pin) != model.PINLen {
		return nil, ErrInvalidPIN
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	pinHash, err := s.hasher.Hash(pin)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}

	now := s.clock.Now()
	user := &model.User{
		Username:     username,
		PasswordHash: passwordHash,
		PINHash:      pinHash,
		Role:         model.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, model.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	s.logger.Info("user created", "username", username)
	return user, nil
}

// Lookup returns the user with exactly this username
func (s *Service) Lookup(ctx context.Context, username string) (*model.User, error) {
	user, err := s.storage.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return user, nil
}

// VerifyPassword reports whether password matches the user's password hash
func (s *Service) VerifyPassword(user *model.User, password string) bool {
	return s.verify(user, "password", password, user.PasswordHash)
}

// VerifyPIN reports whether pin matches the user's PIN hash
func (s *Service) VerifyPIN(user *model.User, pin string) bool {
	return s.verify(user, "pin", pin, user.PINHash)
}

func (s *Service) verify(user *model.User, kind, secret, encoded string) bool {
	ok, err := s.hasher.Verify(secret, encoded)
	if err != nil {
		s.logger.Error("stored hash unreadable", "username", user.Username, "kind", kind, "error", err)
		return false
	}
	return ok
}

// RotatePassword replaces the password hash
func (s *Service) RotatePassword(ctx context.Context, username, newPassword string) error {
	_, err := s.Update(ctx, username, Changes{Password: &newPassword})
	return err
}

// Update applies changes in a single storage transaction. Hashing happens
// before the transaction so a failure leaves the user untouched.
func (s *Service) Update(ctx context.Context, username string, changes Changes) (*model.User, error) {
	var passwordHash string
	if changes.Password != nil {
		if err := ValidatePassword(*changes.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*changes.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = hash
	}
	if changes.Bio != nil {
		if err := ValidateBio(*changes.Bio); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	user, err := s.storage.UpdateUser(ctx, username, func(u *model.User) error {
		if changes.Password != nil {
			u.PasswordHash = passwordHash
		}
		if changes.Bio != nil {
			u.Bio = *changes.Bio
		}
		u.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	if changes.Password != nil {
		s.logger.Info("password rotated", "username", username)
	}
	return user, nil
}

// Rehash recomputes both hashes with current parameters when either is
// weaker. Callers pass the secrets they just verified.
func (s *Service) Rehash(ctx context.Context, user *model.User, password, pin string) error {
	passwordStale, err := s.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil {
		return err
	}
	pinStale, err := s.hasher.NeedsUpgrade(user.PINHash)
	if err != nil {
		return err
	}
	if !passwordStale && !pinStale {
		return nil
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	pinHash, err := s.hasher.Hash(pin)
	if err != nil {
		return err
	}

	_, err = s.storage.UpdateUser(ctx, user.Username, func(u *model.User) error {
		// Only replace the hashes that were verified. A rotation that landed
		// since then wins.
		if u.PasswordHash != user.PasswordHash || u.PINHash != user.PINHash {
			return errCredentialsChanged
		}
		u.PasswordHash = passwordHash
		u.PINHash = pinHash
		return nil
	})
	if errors.Is(err, errCredentialsChanged) {
		s.logger.Info("credential rehash skipped, credentials changed", "username", user.Username)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}

	s.logger.Info("credential hashes upgraded", "username", user.Username)
	return nil
}

// Delete removes the user and every session it owns
func (s *Service) Delete(ctx context.Context, username string) error {
	if err := s.storage.DeleteUser(ctx, username); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	s.logger.Info("user deleted", "username", username)
	return nil
}
