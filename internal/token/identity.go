package token

import (
	"errors"
	"time"
)

// Identity is the verified claim set of one bearer token.
type Identity struct {
	UserID    int64
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Kind classifies token verification failures.
type Kind string

const (
	KindMalformed        Kind = "malformed"
	KindInvalidSignature Kind = "invalid_signature"
	KindExpired          Kind = "expired"
)

// Error is returned by Verify.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "token: " + string(e.Kind)
	}
	return "token: " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a token Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}
