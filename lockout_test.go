package credentials_test

import (
	"testing"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockoutThreshold(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	policy := credentials.NewLockoutPolicy(credentials.WithLockoutClock(func() time.Time { return now }))

	principal := &credentials.Principal{}

	for i := 0; i < 4; i++ {
		engaged := policy.RecordFailure(principal, 5, 15*time.Minute)
		assert.False(t, engaged, "attempt %d must not engage the lock", i+1)
	}

	assert.False(t, policy.IsLockedOut(principal))
	assert.Equal(t, 4, principal.FailedAttempts)

	engaged := policy.RecordFailure(principal, 5, 15*time.Minute)
	assert.True(t, engaged)
	assert.True(t, policy.IsLockedOut(principal))
	require.NotNil(t, principal.LockedUntil)
	assert.Equal(t, now.Add(15*time.Minute), *principal.LockedUntil)
}

func TestLockoutClearsOnSuccess(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	policy := credentials.NewLockoutPolicy(credentials.WithLockoutClock(func() time.Time { return now }))

	principal := &credentials.Principal{}
	policy.RecordFailure(principal, 3, time.Hour)
	policy.RecordFailure(principal, 3, time.Hour)

	policy.RecordSuccess(principal)

	assert.Equal(t, 0, principal.FailedAttempts)
	assert.Nil(t, principal.LockedUntil)
	require.NotNil(t, principal.LastLoginAt)
	assert.Equal(t, now, *principal.LastLoginAt)
}

func TestLockoutExpiryIsLazy(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	policy := credentials.NewLockoutPolicy(credentials.WithLockoutClock(func() time.Time { return now }))

	principal := &credentials.Principal{}
	for i := 0; i < 3; i++ {
		policy.RecordFailure(principal, 3, 10*time.Minute)
	}
	require.True(t, policy.IsLockedOut(principal))

	// no sweeper: the stale lock simply stops applying once the clock
	// passes locked_until
	now = now.Add(10*time.Minute + time.Second)
	assert.False(t, policy.IsLockedOut(principal))
}

func TestManualLockIsNotIdempotent(t *testing.T) {
	policy := credentials.NewLockoutPolicy()
	principal := &credentials.Principal{}

	require.NoError(t, policy.Lock(principal, time.Hour))
	require.ErrorIs(t, policy.Lock(principal, time.Hour), credentials.ErrAlreadyLocked)

	require.NoError(t, policy.Unlock(principal))
	require.ErrorIs(t, policy.Unlock(principal), credentials.ErrNotLocked)
}

func TestManualLockIndependentOfCounter(t *testing.T) {
	policy := credentials.NewLockoutPolicy()
	principal := &credentials.Principal{FailedAttempts: 2}

	require.NoError(t, policy.Lock(principal, time.Hour))
	assert.Equal(t, 2, principal.FailedAttempts)

	require.NoError(t, policy.Unlock(principal))
	assert.Equal(t, 0, principal.FailedAttempts)
	assert.Nil(t, principal.LockedUntil)
}
