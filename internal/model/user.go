package model

import "time"

// Field limits
const (
	UsernameMaxLen = 256
	BioMaxLen      = 1024
	PINLen         = 6
)

// Hash layout: salt and key sizes of the encoded credential hashes
// EncodedHashLen leaves room for the PHC header and padding
const (
	HashSaltLen    = 32
	HashKeyLen     = 512
	EncodedHashLen = HashSaltLen + HashKeyLen + 256
)

// User is a registered account
type User struct {
	Username     string // unique, immutable after creation
	PasswordHash string // fixed-length argon2id encoding
	PINHash      string // fixed-length argon2id encoding
	Bio          string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone returns a copy of the user that can be mutated independently
func (u *User) Clone() *User {
	c := *u
	return &c
}
