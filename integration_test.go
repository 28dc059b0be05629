package credentials_test

import (
	"context"
	"testing"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Covers the full rotation lifecycle for a tenant end user: a benign
// refresh consumes the old token without touching any other session,
// and replaying the consumed token afterwards revokes the whole chain.
func TestRotationThenReplayCascade(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)

	tenant := engine.provisionTenant(t, "acme")
	engine.registerPrincipal(t, credentials.RealmTenantUser, &tenant.ID, "user@acme.test", "Abc12345!")

	pair, err := engine.auth.Login(ctx, credentials.RealmTenantUser, &tenant.ID, "user@acme.test", "Abc12345!", credentials.TokenMetadata{IP: "10.0.0.1"})
	require.NoError(t, err)

	// Benign rotation: the original is consumed, the successor is live.
	next, err := engine.auth.Refresh(ctx, credentials.RealmTenantUser, pair.RefreshToken, credentials.TokenMetadata{IP: "10.0.0.1"})
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	original, state, err := engine.repos.RefreshTokens().Validate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, credentials.TokenStateRevoked, state)
	require.NotNil(t, original)
	assert.True(t, original.ConsumedByRotation())
	require.NotNil(t, original.ReplacedBy)
	assert.Equal(t, next.RefreshToken, *original.ReplacedBy)

	successor, state, err := engine.repos.RefreshTokens().Validate(ctx, next.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, credentials.TokenStateActive, state)
	assert.False(t, successor.Revoked)
	assert.Empty(t, engine.sink.byType(credentials.ActivityEventTokenReuseDetected))

	// Replay of the consumed token: the reuse is detected and every
	// token on the chain, including the live successor, goes down.
	_, err = engine.auth.Refresh(ctx, credentials.RealmTenantUser, pair.RefreshToken, credentials.TokenMetadata{IP: "203.0.113.9"})
	require.ErrorIs(t, err, credentials.ErrTokenRevoked)

	_, state, err = engine.repos.RefreshTokens().Validate(ctx, next.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, credentials.TokenStateRevoked, state)

	_, err = engine.auth.Refresh(ctx, credentials.RealmTenantUser, next.RefreshToken, credentials.TokenMetadata{})
	require.ErrorIs(t, err, credentials.ErrTokenRevoked)

	reuse := engine.sink.byType(credentials.ActivityEventTokenReuseDetected)
	require.Len(t, reuse, 1)
	assert.Equal(t, original.PrincipalID, reuse[0].PrincipalID)
}

// Five straight failures trip the lock on the fifth attempt, and the
// lock holds even when the sixth attempt carries the right password.
func TestLockoutEngagesAtThreshold(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)
	engine.registerPrincipal(t, credentials.RealmDeveloper, nil, "dev@example.com", "Abc12345!")

	for i := 0; i < 5; i++ {
		_, err := engine.auth.Login(ctx, credentials.RealmDeveloper, nil, "dev@example.com", "wrong-pass", credentials.TokenMetadata{})
		require.ErrorIs(t, err, credentials.ErrInvalidCredentials, "attempt %d", i+1)
	}
	require.Len(t, engine.sink.byType(credentials.ActivityEventLockoutEngaged), 1)

	_, err := engine.auth.Login(ctx, credentials.RealmDeveloper, nil, "dev@example.com", "Abc12345!", credentials.TokenMetadata{})
	require.ErrorIs(t, err, credentials.ErrLockedOut)

	until, ok := credentials.LockedUntil(err)
	require.True(t, ok)
	assert.True(t, until.After(engine.clock.Now()))

	// Once the window lapses the same credentials work again.
	engine.clock.Advance(16 * time.Minute)
	_, err = engine.auth.Login(ctx, credentials.RealmDeveloper, nil, "dev@example.com", "Abc12345!", credentials.TokenMetadata{})
	require.NoError(t, err)
}
