// Package token issues and verifies stateless HS256 bearer tokens.
//
// Tokens cannot be revoked: a leaked token stays valid until it expires.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the shortest signing key accepted by NewService.
const MinSecretLength = 32

type claims struct {
	jwt.RegisteredClaims
}

// Service signs and verifies tokens with a shared secret.
type Service struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewService builds a token Service.
func NewService(secret string, ttl time.Duration, issuer string) (*Service, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("token: secret must be at least %d bytes", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, errors.New("token: ttl must be positive")
	}
	return &Service{secret: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}, nil
}

// TTL exposes the configured session lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// NewIdentity prepares the claims for a fresh session of userID.
// Times are truncated to seconds because that is the JWT resolution.
func (s *Service) NewIdentity(userID int64) Identity {
	issued := s.now().UTC().Truncate(time.Second)
	return Identity{
		UserID:    userID,
		TokenID:   uuid.NewString(),
		IssuedAt:  issued,
		ExpiresAt: issued.Add(s.ttl),
	}
}

// Issue signs id into a compact token string.
func (s *Service) Issue(id Identity) (string, error) {
	if id.UserID <= 0 {
		return "", errors.New("token: user id required")
	}
	c := claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(id.UserID, 10),
		Issuer:    s.issuer,
		ID:        id.TokenID,
		IssuedAt:  jwt.NewNumericDate(id.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(id.ExpiresAt),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify checks the signature first and the claims second, so a tampered
// token is always reported as an invalid signature.
func (s *Service) Verify(raw string) (Identity, error) {
	var c claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, classify(err)
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, &Error{Kind: KindMalformed, Err: errors.New("subject is not a user id")}
	}
	return Identity{
		UserID:    userID,
		TokenID:   c.ID,
		IssuedAt:  c.IssuedAt.Time.UTC(),
		ExpiresAt: c.ExpiresAt.Time.UTC(),
	}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &Error{Kind: KindInvalidSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &Error{Kind: KindExpired, Err: err}
	default:
		return &Error{Kind: KindMalformed, Err: err}
	}
}
