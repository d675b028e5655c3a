// Package session issues signed session tokens backed by revocable
// server-side records, plus anonymous client tokens for pre-login state.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mcoot/ari-accounts/internal/dependencies/clock"
	"github.com/mcoot/ari-accounts/internal/model"
	"github.com/mcoot/ari-accounts/internal/storage"
)

const (
	audienceSession = "session"
	audienceClient  = "client"
)

// Errors
var (
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrRevoked             = errors.New("session revoked")
	ErrFingerprintMismatch = errors.New("session fingerprint mismatch")
)

// Config holds session configuration
type Config struct {
	// Lifetime of a signed-in session and its remember cookie
	Lifetime time.Duration
	// ClientLifetime of the anonymous client token
	ClientLifetime time.Duration
	Issuer         string
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		Lifetime:       365 * 24 * time.Hour,
		ClientLifetime: 24 * time.Hour,
		Issuer:         "ari-accounts",
	}
}

// Manager issues, resolves and revokes sessions
type Manager struct {
	storage storage.Storage
	clock   clock.Clock
	secret  []byte
	cfg     Config
	logger  *slog.Logger
}

// New creates a Manager signing tokens with secret
func New(storage storage.Storage, clock clock.Clock, secret []byte, cfg Config, logger *slog.Logger) (*Manager, error) {
	if len(secret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	def := DefaultConfig()
	if cfg.Lifetime == 0 {
		cfg.Lifetime = def.Lifetime
	}
	if cfg.ClientLifetime == 0 {
		cfg.ClientLifetime = def.ClientLifetime
	}
	if cfg.Issuer == "" {
		cfg.Issuer = def.Issuer
	}
	return &Manager{
		storage: storage,
		clock:   clock,
		secret:  secret,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Lifetime returns how long an issued session lasts
func (m *Manager) Lifetime() time.Duration {
	return m.cfg.Lifetime
}

// ClientLifetime returns how long a client token lasts
func (m *Manager) ClientLifetime() time.Duration {
	return m.cfg.ClientLifetime
}

// Issue records a new session for username and returns its signed token
func (m *Manager) Issue(ctx context.Context, username, fingerprint string) (string, *model.Session, error) {
	now := m.clock.Now()
	sess := &model.Session{
		ID:          model.SessionID(uuid.NewString()),
		Username:    username,
		Fingerprint: fingerprint,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.cfg.Lifetime),
	}
	if err := m.storage.SaveSession(ctx, sess); err != nil {
		return "", nil, fmt.Errorf("save session: %w", err)
	}

	token, err := m.sign(audienceSession, username, string(sess.ID), now, sess.ExpiresAt)
	if err != nil {
		return "", nil, err
	}
	return token, sess, nil
}

// Resolve verifies the token and its server-side record. A fingerprint
// mismatch revokes the session.
func (m *Manager) Resolve(ctx context.Context, token, fingerprint string) (*model.Session, error) {
	claims, err := m.parse(token, audienceSession, true)
	if err != nil {
		return nil, err
	}

	sess, err := m.storage.GetSession(ctx, model.SessionID(claims.ID))
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return nil, ErrRevoked
		}
		return nil, err
	}

	if sess.Username != claims.Subject || m.clock.Now().After(sess.ExpiresAt) {
		return nil, ErrRevoked
	}

	if subtle.ConstantTimeCompare([]byte(sess.Fingerprint), []byte(fingerprint)) != 1 {
		if err := m.storage.DeleteSession(ctx, sess.ID); err != nil {
			m.logger.Error("failed to revoke session", "session_id", sess.ID, "error", err)
		}
		m.logger.Warn("session fingerprint changed, session revoked", "username", sess.Username, "session_id", sess.ID)
		return nil, ErrFingerprintMismatch
	}

	return sess, nil
}

// Revoke deletes the record behind token. Expired tokens are still
// revoked as long as the signature holds.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	claims, err := m.parse(token, audienceSession, false)
	if err != nil {
		return err
	}
	return m.RevokeID(ctx, model.SessionID(claims.ID))
}

// RevokeID deletes a session record by id
func (m *Manager) RevokeID(ctx context.Context, id model.SessionID) error {
	return m.storage.DeleteSession(ctx, id)
}

// NewClient mints an anonymous client id and its signed token
func (m *Manager) NewClient() (string, string, error) {
	id := uuid.NewString()
	now := m.clock.Now()
	token, err := m.sign(audienceClient, id, id, now, now.Add(m.cfg.ClientLifetime))
	if err != nil {
		return "", "", err
	}
	return id, token, nil
}

// ParseClient returns the client id carried by a client token
func (m *Manager) ParseClient(token string) (string, error) {
	claims, err := m.parse(token, audienceClient, true)
	if err != nil {
		return "", err
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}

func (m *Manager) sign(audience, subject, id string, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    m.cfg.Issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	return token.SignedString(m.secret)
}

func (m *Manager) parse(token, audience string, validate bool) (*jwt.RegisteredClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	}
	if !validate {
		options = []jwt.ParserOption{
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		}
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil || !parsed.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if !validate && (claims.Issuer != m.cfg.Issuer || !slices.Contains(claims.Audience, audience)) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
