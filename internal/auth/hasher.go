package auth

import (
	"context"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultCost matches the cost existing password hashes were created with.
const DefaultCost = 10

// Hasher runs bcrypt on a bounded number of goroutines so a burst of logins
// cannot saturate every CPU.
type Hasher struct {
	cost  int
	sem   *semaphore.Weighted
	dummy []byte
}

// NewHasher builds a Hasher with the given bcrypt cost and pool size.
func NewHasher(cost, workers int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("auth: bcrypt cost %d out of range [%d,%d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if workers < 1 {
		return nil, fmt.Errorf("auth: hash workers must be positive, got %d", workers)
	}
	seed := make([]byte, 16)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("auth: seed dummy hash: %w", err)
	}
	dummy, err := bcrypt.GenerateFromPassword(seed, cost)
	if err != nil {
		return nil, fmt.Errorf("auth: dummy hash: %w", err)
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(workers)), dummy: dummy}, nil
}

// Hash derives the stored hash of password.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// Matches reports whether password produces hash. The comparison is
// constant time. An error is returned only when ctx ends first.
func (h *Hasher) Matches(ctx context.Context, hash, password string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)
	// A corrupt stored hash counts as a mismatch.
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// Burn spends the same work as a real comparison. It keeps the unknown-user
// path as slow as the wrong-password path.
func (h *Hasher) Burn(ctx context.Context, password string) error {
	_, err := h.Matches(ctx, string(h.dummy), password)
	return err
}
