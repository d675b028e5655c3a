// Package account implements the signup, signin, manage, delete and
// signout flows on top of the credential store and session manager.
package account

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/ari-accounts/internal/model"
	"github.com/mcoot/ari-accounts/internal/services/credentials"
	"github.com/mcoot/ari-accounts/internal/services/session"
)

// Flow errors. Each maps to one user-facing message and status.
var (
	ErrTermsNotAccepted   = errors.New("terms have not been accepted")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrSignupFailed       = errors.New("username is taken / invalid request")
	ErrNoSuchUser         = errors.New("no such user")
	ErrInvalidCredentials = errors.New("invalid pin and / or password")
	ErrInvalidSecrets     = errors.New("invalid password( s ) or PIN")
	ErrServerFailure      = errors.New("invalid request / server error")
	ErrNotConfirmed       = errors.New("account not deleted")
	ErrDeleteFailed       = errors.New("failed to delete account")
)

// SignupRequest is the submitted signup form
type SignupRequest struct {
	Username string
	Password string
	Terms    string
}

// SignupResult carries the generated PIN, shown exactly once
type SignupResult struct {
	Username string
	PIN      string
}

// SigninRequest is the submitted signin form
type SigninRequest struct {
	Username    string
	Password    string
	PIN         string
	Fingerprint string
}

// SigninResult is the issued session
type SigninResult struct {
	Token   string
	Session *model.Session
}

// ManageRequest is the submitted manage form. Bio is nil when the field
// was not submitted.
type ManageRequest struct {
	PasswordOld string
	Password    string
	PIN         string
	Bio         *string
}

// Controller runs the account flows
type Controller struct {
	credentials *credentials.Service
	sessions    *session.Manager
	logger      *slog.Logger
}

// New creates a new Controller
func New(credentials *credentials.Service, sessions *session.Manager, logger *slog.Logger) *Controller {
	return &Controller{
		credentials: credentials,
		sessions:    sessions,
		logger:      logger,
	}
}

// Signup creates an account and returns its freshly generated PIN
func (c *Controller) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	if req.Terms != "on" {
		return nil, ErrTermsNotAccepted
	}
	if req.Username == "" || req.Password == "" {
		return nil, ErrInvalidRequest
	}
	if credentials.ValidateUsername(req.Username) != nil || credentials.ValidatePassword(req.Password) != nil {
		return nil, ErrInvalidRequest
	}

	pin := c.credentials.GeneratePIN()
	if _, err := c.credentials.Create(ctx, req.Username, req.Password, pin); err != nil {
		// Taken usernames and store failures are indistinguishable to clients
		c.logger.Info("signup failed", "username", req.Username, "error", err)
		return nil, ErrSignupFailed
	}

	return &SignupResult{Username: req.Username, PIN: pin}, nil
}

// Signin verifies password and PIN and issues a session
func (c *Controller) Signin(ctx context.Context, req SigninRequest) (*SigninResult, error) {
	if req.Username == "" || req.Password == "" || req.PIN == "" {
		return nil, ErrInvalidRequest
	}

	user, err := c.credentials.Lookup(ctx, req.Username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, ErrNoSuchUser
		}
		c.logger.Error("signin lookup failed", "username", req.Username, "error", err)
		return nil, ErrServerFailure
	}

	// Both secrets are always checked
	passwordOK := c.credentials.VerifyPassword(user, req.Password)
	pinOK := c.credentials.VerifyPIN(user, req.PIN)
	if !passwordOK || !pinOK {
		c.logger.Info("signin rejected", "username", req.Username)
		return nil, ErrInvalidCredentials
	}

	if err := c.credentials.Rehash(ctx, user, req.Password, req.PIN); err != nil {
		c.logger.Warn("credential rehash failed", "username", user.Username, "error", err)
	}

	token, sess, err := c.sessions.Issue(ctx, user.Username, req.Fingerprint)
	if err != nil {
		c.logger.Error("session issue failed", "username", user.Username, "error", err)
		return nil, ErrServerFailure
	}

	c.logger.Info("user signed in", "username", user.Username, "session_id", sess.ID)
	return &SigninResult{Token: token, Session: sess}, nil
}

// Manage rotates the password and/or updates the bio in one commit
func (c *Controller) Manage(ctx context.Context, username string, req ManageRequest) (*model.User, error) {
	user, err := c.credentials.Lookup(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, ErrNoSuchUser
		}
		return nil, ErrServerFailure
	}

	var changes credentials.Changes

	// The password group only applies when all three fields are present.
	// A partly filled group is ignored and the rest of the form still commits.
	if req.PasswordOld != "" && req.Password != "" && req.PIN != "" {
		policyOK := credentials.ValidatePassword(req.Password) == nil
		pinOK := c.credentials.VerifyPIN(user, req.PIN)
		oldOK := c.credentials.VerifyPassword(user, req.PasswordOld)
		if !policyOK || !pinOK || !oldOK {
			c.logger.Info("manage rejected", "username", username)
			return nil, ErrInvalidSecrets
		}
		changes.Password = &req.Password
	}

	if req.Bio != nil {
		if credentials.ValidateBio(*req.Bio) != nil {
			return nil, ErrInvalidRequest
		}
		changes.Bio = req.Bio
	}

	updated, err := c.credentials.Update(ctx, username, changes)
	if err != nil {
		c.logger.Error("user update failed", "username", username, "error", err)
		return nil, ErrServerFailure
	}
	return updated, nil
}

// Delete removes the account when confirmed. Sessions go with it.
func (c *Controller) Delete(ctx context.Context, username, sure string) error {
	if sure != "on" {
		return ErrNotConfirmed
	}
	if err := c.credentials.Delete(ctx, username); err != nil {
		c.logger.Error("account delete failed", "username", username, "error", err)
		return ErrDeleteFailed
	}
	return nil
}

// Signout revokes the session behind token
func (c *Controller) Signout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := c.sessions.Revoke(ctx, token); err != nil && !errors.Is(err, session.ErrInvalidToken) {
		c.logger.Error("signout revoke failed", "error", err)
		return ErrServerFailure
	}
	return nil
}
