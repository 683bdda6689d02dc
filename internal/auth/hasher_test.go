package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewHasherBounds(t *testing.T) {
	_, err := NewHasher(bcrypt.MinCost-1, 1)
	assert.Error(t, err)
	_, err = NewHasher(bcrypt.MaxCost+1, 1)
	assert.Error(t, err)
	_, err = NewHasher(bcrypt.MinCost, 0)
	assert.Error(t, err)
}

func TestHasherRoundTrip(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost, 1)
	require.NoError(t, err)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "hunter2")
	require.NoError(t, err)

	ok, err := h.Matches(ctx, hash, "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Matches(ctx, hash, "hunter3")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.Matches(ctx, "not a bcrypt hash", "hunter2")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, h.Burn(ctx, "anything"))
}

func TestHasherHonoursCancellation(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost, 1)
	require.NoError(t, err)

	// Occupy the only slot so the next call has to wait.
	require.NoError(t, h.sem.Acquire(context.Background(), 1))
	defer h.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Hash(ctx, "pw")
	assert.ErrorIs(t, err, context.Canceled)
}
