package credentials

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeInvalidCredentials identifies generic credential failures.
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	// TextCodeLockedOut identifies temporarily locked accounts.
	TextCodeLockedOut = "ACCOUNT_LOCKED"
	// TextCodeInactive identifies deactivated principals or tenants.
	TextCodeInactive = "ACCOUNT_INACTIVE"
	// TextCodeTokenInvalid identifies unknown or malformed tokens.
	TextCodeTokenInvalid = "TOKEN_INVALID"
	// TextCodeTokenExpired identifies expired refresh tokens.
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenRevoked identifies revoked tokens, including reuse.
	TextCodeTokenRevoked = "TOKEN_REVOKED"
	// TextCodeWeakCredential identifies passwords below minimum policy.
	TextCodeWeakCredential = "WEAK_CREDENTIAL"
	// TextCodeCipherInit identifies malformed cipher key material.
	TextCodeCipherInit = "CIPHER_INIT"
	// TextCodeDecrypt identifies undecryptable stored ciphertext.
	TextCodeDecrypt = "DECRYPT_FAILED"
)

// ErrInvalidCredentials is returned for wrong email/password and for
// nonexistent principals alike, so callers cannot enumerate accounts.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrLockedOut is returned when a principal is temporarily locked. Use
// LockedUntil to recover the unlock time from a wrapped instance.
var ErrLockedOut = goerrors.New("account temporarily locked", goerrors.CategoryAuth).
	WithTextCode(TextCodeLockedOut).
	WithCode(goerrors.CodeForbidden)

// ErrInactive is returned when the principal or its owning tenant has been
// deactivated.
var ErrInactive = goerrors.New("account is not active", goerrors.CategoryAuth).
	WithTextCode(TextCodeInactive).
	WithCode(goerrors.CodeForbidden)

// ErrTokenInvalid covers unknown, malformed, or tampered tokens. Access-token
// validation collapses every failure mode to this single error.
var ErrTokenInvalid = goerrors.New("token is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for refresh tokens past their expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenRevoked is returned for revoked refresh tokens. When the token was
// revoked through rotation the orchestrator additionally cascade-revokes the
// principal's remaining tokens before returning this error.
var ErrTokenRevoked = goerrors.New("token has been revoked", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(goerrors.CodeUnauthorized)

// ErrWeakCredential is returned at hash/change time for passwords below the
// minimum length policy.
var ErrWeakCredential = goerrors.New("password does not meet minimum policy", goerrors.CategoryValidation).
	WithTextCode(TextCodeWeakCredential).
	WithCode(goerrors.CodeBadRequest)

// ErrCipherInit is returned by NewSecretCipher for missing or wrong-length
// key material. It is a fatal startup condition, not a per-call failure.
var ErrCipherInit = goerrors.New("cipher key material is missing or malformed", goerrors.CategoryInternal).
	WithTextCode(TextCodeCipherInit).
	WithCode(goerrors.CodeInternal)

// ErrDecrypt is returned when stored ciphertext cannot be decrypted. Callers
// must not learn whether the encoding or the key was at fault.
var ErrDecrypt = goerrors.New("unable to decrypt secret", goerrors.CategoryInternal).
	WithTextCode(TextCodeDecrypt).
	WithCode(goerrors.CodeInternal)

// ErrAlreadyLocked is returned when manually locking a principal that is
// already locked.
var ErrAlreadyLocked = goerrors.New("principal is already locked", goerrors.CategoryConflict).
	WithTextCode("ALREADY_LOCKED").
	WithCode(goerrors.CodeConflict)

// ErrNotLocked is returned when manually unlocking a principal that is not
// locked.
var ErrNotLocked = goerrors.New("principal is not locked", goerrors.CategoryConflict).
	WithTextCode("NOT_LOCKED").
	WithCode(goerrors.CodeConflict)

// ErrEmailTaken is returned when registering an email that already exists
// within the realm scope.
var ErrEmailTaken = goerrors.New("email is already registered", goerrors.CategoryConflict).
	WithTextCode("EMAIL_TAKEN").
	WithCode(goerrors.CodeConflict)

const lockedUntilMetadataKey = "locked_until"

// lockedOutError wraps ErrLockedOut with the unlock time so transports can
// surface it without a second lookup.
func lockedOutError(until time.Time) error {
	return goerrors.Wrap(ErrLockedOut, goerrors.CategoryAuth, "account temporarily locked").
		WithTextCode(TextCodeLockedOut).
		WithCode(goerrors.CodeForbidden).
		WithMetadata(map[string]any{lockedUntilMetadataKey: until})
}

// LockedUntil extracts the unlock time carried by a lockout error.
func LockedUntil(err error) (time.Time, bool) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return time.Time{}, false
	}

	until, ok := richErr.Metadata[lockedUntilMetadataKey].(time.Time)
	return until, ok
}
