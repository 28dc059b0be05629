package credentials

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Registration is the input for creating a new principal in a realm.
type Registration struct {
	Realm    Realm      `json:"realm"`
	TenantID *uuid.UUID `json:"tenant_id,omitempty"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
}

// Validate enforces the registration input policy. Password strength is
// enforced separately by the hasher so change-password flows share it.
func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// Register creates a principal with a normalized email and hashed
// credential. Emails are unique within the realm scope: globally for the
// platform and developer realms, per tenant for end-users.
func (s *Authenticator) Register(ctx context.Context, reg Registration) (*Principal, error) {
	if !reg.Realm.Valid() {
		return nil, goerrors.New("unknown realm", goerrors.CategoryBadInput)
	}

	if reg.Realm.TenantScoped() && reg.TenantID == nil {
		return nil, goerrors.New("tenant id is required for tenant-scoped realms", goerrors.CategoryBadInput)
	}

	if err := reg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration input")
	}

	hash, salt, err := HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}

	principal := &Principal{
		Realm:        reg.Realm,
		TenantID:     reg.TenantID,
		Email:        NormalizeEmail(reg.Email),
		PasswordHash: hash,
		PasswordSalt: salt,
		Active:       true,
	}

	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repos.Principals().GetByEmailTx(ctx, tx, reg.Realm, reg.TenantID, principal.Email); err == nil {
			return ErrEmailTaken
		} else if !repository.IsRecordNotFound(err) {
			return err
		}

		if principal, err = s.repos.Principals().RegisterTx(ctx, tx, principal); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create principal")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "registration transaction failed")
	}

	s.emitEvent(ctx, ActivityEventRegistered, reg.Realm, principal.ID, reg.TenantID, nil)

	return principal, nil
}

// ProvisionTenant creates a tenant application with a freshly generated,
// encrypted signing key and the given credential policy. Zero policy values
// fall back to the engine configuration at evaluation time.
func (s *Authenticator) ProvisionTenant(ctx context.Context, tenant *Tenant) (*Tenant, error) {
	if tenant == nil {
		return nil, goerrors.New("tenant must not be nil", goerrors.CategoryBadInput)
	}

	if tenant.SigningKeyCiphertext == "" {
		key, err := RandomSigningKey()
		if err != nil {
			return nil, err
		}
		tenant.SigningKeyCiphertext = s.cipher.Encrypt(key)
	}

	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	tenant.Active = true

	return s.repos.Tenants().Create(ctx, tenant)
}
