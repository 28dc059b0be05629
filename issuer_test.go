package credentials_test

import (
	"testing"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func testPrincipal(realm credentials.Realm, tenantID *uuid.UUID) *credentials.Principal {
	return &credentials.Principal{
		ID:       uuid.New(),
		Realm:    realm,
		TenantID: tenantID,
		Active:   true,
	}
}

func TestIssueAndValidateAccessToken(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := credentials.NewTokenIssuer("credentials-test", []string{"api"},
		credentials.WithIssuerClock(func() time.Time { return now }))

	tenantID := uuid.New()
	principal := testPrincipal(credentials.RealmTenantUser, &tenantID)

	signed, claims, err := issuer.IssueAccessToken(principal, testSigningKey, 5*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, signed)
	require.NotEmpty(t, claims.ID, "token id must be set for traceability")
	assert.Equal(t, now.Add(5*time.Minute), claims.ExpiresAt.Time)

	parsed, err := issuer.ValidateAccessToken(signed, testSigningKey)
	require.NoError(t, err)
	assert.Equal(t, principal.ID.String(), parsed.Subject)
	assert.Equal(t, credentials.RealmTenantUser, parsed.Realm)
	assert.Equal(t, tenantID.String(), parsed.TenantID)

	parsedID, err := parsed.PrincipalID()
	require.NoError(t, err)
	assert.Equal(t, principal.ID, parsedID)
}

func TestValidateAccessTokenFailsClosed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := credentials.NewTokenIssuer("credentials-test", []string{"api"},
		credentials.WithIssuerClock(func() time.Time { return now }))

	principal := testPrincipal(credentials.RealmPlatform, nil)
	signed, _, err := issuer.IssueAccessToken(principal, testSigningKey, 5*time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		key   []byte
	}{
		{"garbage input", "not-a-token", testSigningKey},
		{"empty input", "", testSigningKey},
		{"wrong key", signed, []byte("another-key-another-key-another!")},
		{"tampered payload", signed[:len(signed)-4] + "AAAA", testSigningKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.ValidateAccessToken(tt.token, tt.key)
			// every failure mode collapses to the same error
			require.ErrorIs(t, err, credentials.ErrTokenInvalid)
		})
	}
}

func TestValidateAccessTokenZeroSkew(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := credentials.NewTokenIssuer("credentials-test", nil,
		credentials.WithIssuerClock(func() time.Time { return now }))

	principal := testPrincipal(credentials.RealmDeveloper, nil)
	signed, _, err := issuer.IssueAccessToken(principal, testSigningKey, 5*time.Minute)
	require.NoError(t, err)

	// one second past expiry is already invalid
	now = now.Add(5*time.Minute + time.Second)
	_, err = issuer.ValidateAccessToken(signed, testSigningKey)
	require.ErrorIs(t, err, credentials.ErrTokenInvalid)
}

func TestValidateAccessTokenIssuerMismatch(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	minting := credentials.NewTokenIssuer("other-service", nil, credentials.WithIssuerClock(clock))
	validating := credentials.NewTokenIssuer("credentials-test", nil, credentials.WithIssuerClock(clock))

	principal := testPrincipal(credentials.RealmPlatform, nil)
	signed, _, err := minting.IssueAccessToken(principal, testSigningKey, 5*time.Minute)
	require.NoError(t, err)

	_, err = validating.ValidateAccessToken(signed, testSigningKey)
	require.ErrorIs(t, err, credentials.ErrTokenInvalid)
}

func TestNewRefreshTokenValue(t *testing.T) {
	seen := map[string]struct{}{}

	for i := 0; i < 64; i++ {
		value, err := credentials.NewRefreshTokenValue()
		require.NoError(t, err)

		// 64 bytes of entropy, base64url without padding
		assert.Len(t, value, 86)

		_, dup := seen[value]
		assert.False(t, dup, "refresh token values must not repeat")
		seen[value] = struct{}{}
	}
}
