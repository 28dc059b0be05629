package credentials_test

import (
	"testing"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/stretchr/testify/assert"
)

func TestRefreshTokenState(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	successor := "successor-token-value"

	tests := []struct {
		name     string
		token    *credentials.RefreshToken
		expected credentials.TokenState
	}{
		{
			name:     "nil token is invalid",
			token:    nil,
			expected: credentials.TokenStateInvalid,
		},
		{
			name:     "unexpired and unrevoked is active",
			token:    &credentials.RefreshToken{ExpiresAt: now.Add(time.Hour)},
			expected: credentials.TokenStateActive,
		},
		{
			name:     "past expiry is expired",
			token:    &credentials.RefreshToken{ExpiresAt: now.Add(-time.Second)},
			expected: credentials.TokenStateExpired,
		},
		{
			name:     "revoked is revoked",
			token:    &credentials.RefreshToken{Revoked: true, ExpiresAt: now.Add(time.Hour)},
			expected: credentials.TokenStateRevoked,
		},
		{
			name: "revocation wins over expiry",
			token: &credentials.RefreshToken{
				Revoked:    true,
				ReplacedBy: &successor,
				ExpiresAt:  now.Add(-time.Hour),
			},
			expected: credentials.TokenStateRevoked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.token.State(now))
		})
	}
}

func TestRefreshTokenConsumedByRotation(t *testing.T) {
	successor := "successor-token-value"

	directRevoke := &credentials.RefreshToken{Revoked: true}
	assert.False(t, directRevoke.ConsumedByRotation())

	rotated := &credentials.RefreshToken{Revoked: true, Used: true, ReplacedBy: &successor}
	assert.True(t, rotated.ConsumedByRotation())

	active := &credentials.RefreshToken{}
	assert.False(t, active.ConsumedByRotation())
}
