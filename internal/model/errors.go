package model

import "errors"

// Common errors used across the application
var (
	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// Captcha errors
	ErrChallengeNotFound = errors.New("challenge not found")
)
