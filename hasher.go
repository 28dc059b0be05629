package credentials

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/pbkdf2"
)

// MinPasswordLength is the minimum plaintext length accepted at hash time.
const MinPasswordLength = 8

const (
	hashIterations = 210_000
	hashKeyLength  = 32
	hashSaltLength = 16
)

// HashPassword derives a PBKDF2-SHA256 hash from the password with a fresh
// random salt. Both return values are base64 encoded for storage.
func HashPassword(password string) (hash string, salt string, err error) {
	if len(password) < MinPasswordLength {
		return "", "", ErrWeakCredential
	}

	rawSalt := make([]byte, hashSaltLength)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate password salt")
	}

	key := pbkdf2.Key([]byte(password), rawSalt, hashIterations, hashKeyLength, sha256.New)

	return base64.RawStdEncoding.EncodeToString(key),
		base64.RawStdEncoding.EncodeToString(rawSalt),
		nil
}

// VerifyPassword recomputes the hash with the stored salt and compares in
// constant time. Malformed stored values verify as false rather than erroring
// so callers keep a single failure path.
func VerifyPassword(password, hash, salt string) bool {
	rawHash, err := base64.RawStdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}

	rawSalt, err := base64.RawStdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}

	key := pbkdf2.Key([]byte(password), rawSalt, hashIterations, hashKeyLength, sha256.New)

	return subtle.ConstantTimeCompare(key, rawHash) == 1
}
