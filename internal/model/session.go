package model

import "time"

// SessionID identifies a server-side login session
type SessionID string

// Session is the server-side record behind a signed session token.
// A token whose session record is missing is revoked.
type Session struct {
	ID          SessionID
	Username    string
	Fingerprint string // client fingerprint captured at signin
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Challenge is a pending captcha answer bound to a client session.
// Only a keyed hash of the answer is kept.
type Challenge struct {
	Salt       []byte
	AnswerHash []byte
	IssuedAt   time.Time
}
