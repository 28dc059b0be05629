package credentials

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Principal is any authenticating identity: the platform admin, a developer
// account, or a tenant end-user. Email uniqueness is enforced per realm, and
// per tenant for tenant end-users.
type Principal struct {
	bun.BaseModel  `bun:"table:principals,alias:prn"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Realm          Realm      `bun:"realm,notnull,unique:prn_realm_tenant_email" json:"realm,omitempty"`
	TenantID       *uuid.UUID `bun:"tenant_id,type:uuid,unique:prn_realm_tenant_email" json:"tenant_id,omitempty"`
	Email          string     `bun:"email,notnull,unique:prn_realm_tenant_email" json:"email,omitempty"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	PasswordSalt   string     `bun:"password_salt,notnull" json:"-"`
	Active         bool       `bun:"is_active" json:"is_active,omitempty"`
	FailedAttempts int        `bun:"failed_attempts" json:"failed_attempts,omitempty"`
	LockedUntil    *time.Time `bun:"locked_until,nullzero" json:"locked_until,omitempty"`
	LastLoginAt    *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Tenant is a provisioned tenant application: its encrypted signing material
// and the credential policy applied to its end-users. Signing keys and
// provider credentials are stored as ciphertext only.
type Tenant struct {
	bun.BaseModel        `bun:"table:tenants,alias:tnt"`
	ID                   uuid.UUID         `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name                 string            `bun:"name,notnull" json:"name,omitempty"`
	SigningKeyCiphertext string            `bun:"signing_key_ciphertext,notnull" json:"-"`
	ProviderCredentials  map[string]string `bun:"provider_credentials,type:jsonb" json:"-"`
	MaxFailedAttempts    int               `bun:"max_failed_attempts,notnull" json:"max_failed_attempts,omitempty"`
	LockoutDuration      time.Duration     `bun:"lockout_duration,notnull" json:"lockout_duration,omitempty"`
	AccessTokenTTL       time.Duration     `bun:"access_token_ttl,notnull" json:"access_token_ttl,omitempty"`
	RefreshTokenTTL      time.Duration     `bun:"refresh_token_ttl,notnull" json:"refresh_token_ttl,omitempty"`
	Active               bool              `bun:"is_active" json:"is_active,omitempty"`
	CreatedAt            *time.Time        `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt            *time.Time        `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt            *time.Time        `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// TokenState classifies a refresh token at validation time. Expired is
// derived from the clock, never stored.
type TokenState string

const (
	TokenStateActive  TokenState = "active"
	TokenStateExpired TokenState = "expired"
	TokenStateRevoked TokenState = "revoked"
	TokenStateInvalid TokenState = "invalid"
)

// RefreshToken is one issued refresh credential. It is mutated only by the
// ledger: mark-used, revoke, and link-successor via ReplacedBy.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rft"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	PrincipalID   uuid.UUID  `bun:"principal_id,notnull,type:uuid" json:"principal_id,omitempty"`
	TenantID      *uuid.UUID `bun:"tenant_id,type:uuid" json:"tenant_id,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"-"`
	IssuedAt      time.Time  `bun:"issued_at,notnull" json:"issued_at,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	Used          bool       `bun:"used" json:"used,omitempty"`
	Revoked       bool       `bun:"revoked" json:"revoked,omitempty"`
	ReplacedBy    *string    `bun:"replaced_by" json:"-"`
	IP            string     `bun:"ip" json:"ip,omitempty"`
	UserAgent     string     `bun:"user_agent" json:"user_agent,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsExpired reports whether the token is past its expiry at the given time.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// ConsumedByRotation reports whether the token was revoked through a
// legitimate rotation rather than a direct revoke. Presenting such a token
// again is the reuse signal that triggers cascade revocation.
func (t *RefreshToken) ConsumedByRotation() bool {
	return t.Revoked && t.ReplacedBy != nil
}

// State classifies the token. Revocation wins over expiry so a replayed
// rotated token is still reported as revoked after it would have expired.
func (t *RefreshToken) State(now time.Time) TokenState {
	if t == nil {
		return TokenStateInvalid
	}

	if t.Revoked {
		return TokenStateRevoked
	}

	if t.IsExpired(now) {
		return TokenStateExpired
	}

	return TokenStateActive
}
