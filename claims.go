package credentials

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the signed assertion carried by an access token: subject,
// realm discriminator, issuing tenant (for the end-user realm), issuance and
// expiry instants, and a unique token id for traceability. Access tokens are
// never individually revoked; keep their lifetime short.
type AccessClaims struct {
	jwt.RegisteredClaims
	Realm    Realm  `json:"realm,omitempty"`
	TenantID string `json:"tid,omitempty"`
}

// PrincipalID parses the subject claim as a principal id.
func (c *AccessClaims) PrincipalID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrTokenInvalid
	}
	return id, nil
}

// IssuingTenantID parses the tenant claim, if present.
func (c *AccessClaims) IssuingTenantID() (*uuid.UUID, error) {
	if c.TenantID == "" {
		return nil, nil
	}

	id, err := uuid.Parse(c.TenantID)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	return &id, nil
}
