package credentials

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var updateSigningKeySQL = `UPDATE "tenants" AS "tnt"
SET
	"signing_key_ciphertext" = ?,
	"updated_at" = ?
WHERE
	"tnt"."deleted_at" IS NULL
AND (
	"tnt"."id" = ?
) RETURNING *;`

// Tenants is the repository for tenant applications and their encrypted
// signing/credential material.
type Tenants interface {
	repository.Repository[*Tenant]

	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Tenant, error)

	UpdateSigningKey(ctx context.Context, id uuid.UUID, ciphertext string) error
	UpdateSigningKeyTx(ctx context.Context, tx bun.IDB, id uuid.UUID, ciphertext string) error

	SetProviderCredential(ctx context.Context, id uuid.UUID, name, ciphertext string) error
}

type tenants struct {
	repository.Repository[*Tenant]
	db *bun.DB
}

var _ Tenants = (*tenants)(nil)

// NewTenantsRepository wires the generic repository with tenant model
// handlers.
func NewTenantsRepository(db *bun.DB) Tenants {
	repo := repository.NewRepository[*Tenant](db, repository.ModelHandlers[*Tenant]{
		NewRecord: func() *Tenant { return &Tenant{} },
		GetID: func(t *Tenant) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Tenant, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &tenants{
		Repository: repo,
		db:         db,
	}
}

func (a *tenants) FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *tenants) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Tenant, error) {
	record := &Tenant{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	return record, nil
}

func (a *tenants) UpdateSigningKey(ctx context.Context, id uuid.UUID, ciphertext string) error {
	return a.UpdateSigningKeyTx(ctx, a.db, id, ciphertext)
}

func (a *tenants) UpdateSigningKeyTx(ctx context.Context, tx bun.IDB, id uuid.UUID, ciphertext string) error {
	res, err := a.Repository.RawTx(ctx, tx, updateSigningKeySQL, ciphertext, time.Now(), id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

// SetProviderCredential stores one provider credential ciphertext under its
// provider name. The caller encrypts before handing the value over.
func (a *tenants) SetProviderCredential(ctx context.Context, id uuid.UUID, name, ciphertext string) error {
	tenant, err := a.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if tenant.ProviderCredentials == nil {
		tenant.ProviderCredentials = map[string]string{}
	}
	tenant.ProviderCredentials[name] = ciphertext

	_, err = a.db.NewUpdate().
		Model(tenant).
		Column("provider_credentials", "updated_at").
		Where("?TableAlias.id = ?", id).
		Exec(ctx)

	return err
}
