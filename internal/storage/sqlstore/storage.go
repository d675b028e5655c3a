// Package sqlstore implements storage on SQLite (modernc.org/sqlite) or
// PostgreSQL (pgx stdlib driver) with goose-managed schema.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/mcoot/ari-accounts/internal/model"
	"github.com/mcoot/ari-accounts/internal/storage"
	"github.com/mcoot/ari-accounts/internal/storage/sqlstore/migrations"
)

// Config holds SQL storage configuration
type Config struct {
	Dialect Dialect
	DSN     string
}

// Storage is a SQL implementation of the storage interface
type Storage struct {
	db      *sql.DB
	dialect Dialect
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Open connects to the database and applies pending migrations
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	db, err := sql.Open(cfg.Dialect.driver(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if cfg.Dialect == DialectSQLite {
		// One connection keeps writers serialized and pragmas applied
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	s := &Storage{db: db, dialect: cfg.Dialect}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

// SQLiteDSN builds a file DSN with foreign keys enabled
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (s *Storage) migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(s.dialect.gooseDialect()); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, s.dialect.migrationsDir())
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) q(query string) string {
	return s.dialect.rebind(query)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// User operations

const userColumns = "username, password_hash, pin_hash, bio, role, created_at, updated_at"

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		user             model.User
		role             int
		created, updated int64
	)
	err := row.Scan(&user.Username, &user.PasswordHash, &user.PINHash, &user.Bio, &role, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}
	user.Role = model.Role(role)
	if !user.Role.Valid() {
		return nil, fmt.Errorf("user %q: %w: %d", user.Username, model.ErrUnknownRole, role)
	}
	user.CreatedAt = fromMillis(created)
	user.UpdatedAt = fromMillis(updated)
	return &user, nil
}

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	res, err := s.db.ExecContext(ctx, s.q(
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (username) DO NOTHING"),
		user.Username, user.PasswordHash, user.PINHash, user.Bio, int(user.Role),
		toMillis(user.CreatedAt), toMillis(user.UpdatedAt),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrUserExists
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, username string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, s.q(
		"SELECT "+userColumns+" FROM users WHERE username = ?"), username))
}

func (s *Storage) UpdateUser(ctx context.Context, username string, mutate storage.UserMutation) (*model.User, error) {
	var result *model.User
	err := withTx(ctx, s.db, func(tx dbtx) error {
		user, err := scanUser(tx.QueryRowContext(ctx, s.q(
			"SELECT "+userColumns+" FROM users WHERE username = ?"+s.dialect.lockSuffix()), username))
		if err != nil {
			return err
		}

		if err := mutate(user); err != nil {
			return err
		}
		user.Username = username

		_, err = tx.ExecContext(ctx, s.q(
			"UPDATE users SET password_hash = ?, pin_hash = ?, bio = ?, role = ?, updated_at = ? WHERE username = ?"),
			user.PasswordHash, user.PINHash, user.Bio, int(user.Role), toMillis(user.UpdatedAt), username,
		)
		if err != nil {
			return err
		}
		result = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Storage) DeleteUser(ctx context.Context, username string) error {
	return withTx(ctx, s.db, func(tx dbtx) error {
		// Explicit delete so revocation does not depend on FK enforcement
		if _, err := tx.ExecContext(ctx, s.q("DELETE FROM sessions WHERE username = ?"), username); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.q("DELETE FROM users WHERE username = ?"), username)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return model.ErrUserNotFound
		}
		return nil
	})
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	return withTx(ctx, s.db, func(tx dbtx) error {
		var one int
		err := tx.QueryRowContext(ctx, s.q("SELECT 1 FROM users WHERE username = ?"), session.Username).Scan(&one)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return model.ErrUserNotFound
			}
			return err
		}

		_, err = tx.ExecContext(ctx, s.q(
			`INSERT INTO sessions (id, username, fingerprint, created_at, expires_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET username = excluded.username, fingerprint = excluded.fingerprint,
			created_at = excluded.created_at, expires_at = excluded.expires_at`),
			string(session.ID), session.Username, session.Fingerprint,
			toMillis(session.CreatedAt), toMillis(session.ExpiresAt),
		)
		return err
	})
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	var (
		session          model.Session
		sid              string
		created, expires int64
	)
	err := s.db.QueryRowContext(ctx, s.q(
		"SELECT id, username, fingerprint, created_at, expires_at FROM sessions WHERE id = ?"), string(id),
	).Scan(&sid, &session.Username, &session.Fingerprint, &created, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}
	session.ID = model.SessionID(sid)
	session.CreatedAt = fromMillis(created)
	session.ExpiresAt = fromMillis(expires)
	return &session, nil
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	_, err := s.db.ExecContext(ctx, s.q("DELETE FROM sessions WHERE id = ?"), string(id))
	return err
}

// Captcha challenge operations

func (s *Storage) SaveChallenge(ctx context.Context, clientID string, challenge *model.Challenge, ttl time.Duration) error {
	now := time.Now()
	return withTx(ctx, s.db, func(tx dbtx) error {
		if _, err := tx.ExecContext(ctx, s.q("DELETE FROM challenges WHERE expires_at < ?"), toMillis(now)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.q(
			`INSERT INTO challenges (client_id, salt, answer_hash, issued_at, expires_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (client_id) DO UPDATE SET salt = excluded.salt, answer_hash = excluded.answer_hash,
			issued_at = excluded.issued_at, expires_at = excluded.expires_at`),
			clientID, challenge.Salt, challenge.AnswerHash,
			toMillis(challenge.IssuedAt), toMillis(now.Add(ttl)),
		)
		return err
	})
}

func (s *Storage) TakeChallenge(ctx context.Context, clientID string) (*model.Challenge, error) {
	var (
		challenge       model.Challenge
		issued, expires int64
	)
	// DELETE ... RETURNING consumes the row in a single statement
	err := s.db.QueryRowContext(ctx, s.q(
		"DELETE FROM challenges WHERE client_id = ? RETURNING salt, answer_hash, issued_at, expires_at"), clientID,
	).Scan(&challenge.Salt, &challenge.AnswerHash, &issued, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrChallengeNotFound
		}
		return nil, err
	}
	if time.Now().After(fromMillis(expires)) {
		return nil, model.ErrChallengeNotFound
	}
	challenge.IssuedAt = fromMillis(issued)
	return &challenge, nil
}
