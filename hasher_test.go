package credentials_test

import (
	"testing"

	credentials "github.com/goliatone/go-credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	passwords := []string{
		"Abc12345!",
		"correct horse battery staple",
		"p@ssw0rd-with-unicode-ñ",
	}

	for _, password := range passwords {
		hash, salt, err := credentials.HashPassword(password)
		require.NoError(t, err)
		require.NotEmpty(t, hash)
		require.NotEmpty(t, salt)

		assert.True(t, credentials.VerifyPassword(password, hash, salt))
		assert.False(t, credentials.VerifyPassword(password+"x", hash, salt))
		assert.False(t, credentials.VerifyPassword("", hash, salt))
	}
}

func TestHashPasswordRejectsWeakCredential(t *testing.T) {
	_, _, err := credentials.HashPassword("short1")
	require.ErrorIs(t, err, credentials.ErrWeakCredential)
}

func TestHashPasswordSaltUniqueness(t *testing.T) {
	hash1, salt1, err := credentials.HashPassword("Abc12345!")
	require.NoError(t, err)

	hash2, salt2, err := credentials.HashPassword("Abc12345!")
	require.NoError(t, err)

	assert.NotEqual(t, salt1, salt2)
	assert.NotEqual(t, hash1, hash2)
}

func TestVerifyPasswordMalformedStoredValues(t *testing.T) {
	hash, salt, err := credentials.HashPassword("Abc12345!")
	require.NoError(t, err)

	assert.False(t, credentials.VerifyPassword("Abc12345!", "%%%not-base64%%%", salt))
	assert.False(t, credentials.VerifyPassword("Abc12345!", hash, "%%%not-base64%%%"))
}
