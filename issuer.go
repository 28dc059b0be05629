package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// refreshTokenEntropy is the number of random bytes backing an opaque
// refresh token value (512 bits).
const refreshTokenEntropy = 64

// TokenIssuer mints signed access tokens and opaque refresh token values.
// Signing keys are realm specific and supplied per call by a KeyResolver, so
// plaintext tenant keys never outlive the issuance call.
type TokenIssuer struct {
	issuer   string
	audience jwt.ClaimStrings
	logger   Logger
	now      Clock
}

// IssuerOption customizes issuer construction.
type IssuerOption func(*TokenIssuer)

// WithIssuerClock injects a custom clock (useful for tests).
func WithIssuerClock(clock Clock) IssuerOption {
	return func(ti *TokenIssuer) {
		if clock != nil {
			ti.now = clock
		}
	}
}

// WithIssuerLogger overrides the logger.
func WithIssuerLogger(logger Logger) IssuerOption {
	return func(ti *TokenIssuer) {
		if logger != nil {
			ti.logger = logger
		}
	}
}

// NewTokenIssuer creates a TokenIssuer stamping the given issuer and
// audience on every minted token.
func NewTokenIssuer(issuer string, audience []string, opts ...IssuerOption) *TokenIssuer {
	var aud jwt.ClaimStrings
	if len(audience) > 0 {
		aud = make(jwt.ClaimStrings, len(audience))
		copy(aud, audience)
	}

	ti := &TokenIssuer{
		issuer:   issuer,
		audience: aud,
		logger:   defLogger{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ti)
		}
	}

	return ti
}

// IssueAccessToken signs a time-boxed HS256 assertion for the principal
// under the realm signing key. The returned claims carry the expiry the
// orchestrator reports to callers.
func (ti *TokenIssuer) IssueAccessToken(principal *Principal, signingKey []byte, ttl time.Duration) (string, *AccessClaims, error) {
	if principal == nil {
		return "", nil, goerrors.New("principal must not be nil", goerrors.CategoryBadInput)
	}

	if len(signingKey) == 0 {
		return "", nil, goerrors.New("signing key must not be empty", goerrors.CategoryBadInput)
	}

	if ttl <= 0 {
		return "", nil, goerrors.New("access token TTL must be positive", goerrors.CategoryBadInput)
	}

	now := ti.now()

	var tenantID string
	if principal.Realm.TenantScoped() && principal.TenantID != nil {
		tenantID = principal.TenantID.String()
	}

	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ti.issuer,
			Subject:   principal.ID.String(),
			Audience:  ti.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Realm:    principal.Realm,
		TenantID: tenantID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign access token")
	}

	return signed, claims, nil
}

// ValidateAccessToken verifies signature, issuer, audience, and expiry with
// zero clock-skew tolerance. It fails closed: expired, tampered, and
// malformed tokens all yield ErrTokenInvalid so callers get no oracle; the
// precise cause is only logged server-side.
func (ti *TokenIssuer) ValidateAccessToken(raw string, signingKey []byte) (*AccessClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return ti.now() }),
	}
	if ti.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ti.issuer))
	}
	if len(ti.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ti.audience...))
	}

	token, err := jwt.ParseWithClaims(raw, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return signingKey, nil
	}, parserOptions...)

	if err != nil {
		ti.logger.Debug("access token rejected", "error", err)
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		ti.logger.Debug("access token claims could not be decoded")
		return nil, ErrTokenInvalid
	}

	if !claims.Realm.Valid() {
		ti.logger.Debug("access token carries unknown realm", "realm", claims.Realm)
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// NewRefreshTokenValue generates an opaque, unguessable refresh token value
// with 512 bits of entropy. It carries no embedded claims, so its security
// is independent of the signing-key compromise surface.
func NewRefreshTokenValue() (string, error) {
	raw := make([]byte, refreshTokenEntropy)
	if _, err := rand.Read(raw); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate refresh token")
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}
