package auth

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrNotFound     = errors.New("auth: not found")
	ErrEmailTaken   = errors.New("auth: email already registered")
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")

	// ErrInvalidToken covers malformed tokens, bad signatures and
	// issuer/audience mismatches uniformly so callers cannot tell
	// which check failed.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrTokenExpired still matches ErrInvalidToken via errors.Is;
	// clients may use the distinction to decide whether to refresh.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)

	ErrHashing = errors.New("auth: password hashing failed")
	ErrSigning = errors.New("auth: token signing failed")
)
