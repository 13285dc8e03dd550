package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: resource conflict")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrUnauthorized = errors.New("auth: unauthorized")

	// ErrInvalidToken covers every failed resolution: unknown, revoked or
	// expired tokens and principals that are no longer active. Callers must
	// not be able to tell these apart.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrInvalidCredentials covers both unknown logins and password
	// mismatches, indistinguishable at the HTTP boundary.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)
