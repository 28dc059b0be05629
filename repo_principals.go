package credentials

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var trackFailedLoginSQL = `UPDATE "principals" AS "prn"
SET
	"failed_attempts" = ?,
	"locked_until" = ?,
	"updated_at" = ?
WHERE
	"prn"."deleted_at" IS NULL
AND (
	"prn"."id" = ?
) RETURNING *;`

var trackSuccessfulLoginSQL = `UPDATE "principals" AS "prn"
SET
	"failed_attempts" = 0,
	"locked_until" = NULL,
	"last_login_at" = ?,
	"updated_at" = ?
WHERE
	"prn"."deleted_at" IS NULL
AND (
	"prn"."id" = ?
) RETURNING *;`

var setActiveSQL = `UPDATE "principals" AS "prn"
SET
	"is_active" = ?,
	"updated_at" = ?
WHERE
	"prn"."deleted_at" IS NULL
AND (
	"prn"."id" = ?
) RETURNING *;`

var updatePasswordSQL = `UPDATE "principals" AS "prn"
SET
	"password_hash" = ?,
	"password_salt" = ?,
	"updated_at" = ?
WHERE
	"prn"."deleted_at" IS NULL
AND (
	"prn"."id" = ?
) RETURNING *;`

// Principals is the repository for authenticating identities across all
// three realms.
type Principals interface {
	repository.Repository[*Principal]

	FindByID(ctx context.Context, id uuid.UUID) (*Principal, error)
	GetByEmail(ctx context.Context, realm Realm, tenantID *uuid.UUID, email string) (*Principal, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, realm Realm, tenantID *uuid.UUID, email string) (*Principal, error)

	TrackFailedLogin(ctx context.Context, principal *Principal) error
	TrackFailedLoginTx(ctx context.Context, tx bun.IDB, principal *Principal) error
	TrackSuccessfulLogin(ctx context.Context, principal *Principal) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, principal *Principal) error

	UpdateLock(ctx context.Context, principal *Principal) error

	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	UpdatePassword(ctx context.Context, id uuid.UUID, hash, salt string) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, hash, salt string) error

	Register(ctx context.Context, principal *Principal) (*Principal, error)
	RegisterTx(ctx context.Context, tx bun.IDB, principal *Principal) (*Principal, error)
}

type principals struct {
	repository.Repository[*Principal]
	db *bun.DB
}

var _ Principals = (*principals)(nil)

// NewPrincipalsRepository wires the generic repository with principal model
// handlers.
func NewPrincipalsRepository(db *bun.DB) Principals {
	repo := repository.NewRepository[*Principal](db, repository.ModelHandlers[*Principal]{
		NewRecord: func() *Principal { return &Principal{} },
		GetID: func(p *Principal) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Principal, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &principals{
		Repository: repo,
		db:         db,
	}
}

// NormalizeEmail lowercases and trims an email for scoped-unique lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *principals) FindByID(ctx context.Context, id uuid.UUID) (*Principal, error) {
	record := &Principal{}
	err := a.db.NewSelect().
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

func (a *principals) GetByEmail(ctx context.Context, realm Realm, tenantID *uuid.UUID, email string) (*Principal, error) {
	return a.GetByEmailTx(ctx, a.db, realm, tenantID, email)
}

func (a *principals) GetByEmailTx(ctx context.Context, tx bun.IDB, realm Realm, tenantID *uuid.UUID, email string) (*Principal, error) {
	record := &Principal{}
	q := tx.NewSelect().
		Model(record).
		Where("?TableAlias.realm = ?", realm).
		Where("?TableAlias.email = ?", NormalizeEmail(email))

	if realm.TenantScoped() {
		if tenantID == nil {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"realm": string(realm)})
		}
		q = q.Where("?TableAlias.tenant_id = ?", *tenantID)
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"realm": string(realm),
					"email": NormalizeEmail(email),
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *principals) TrackFailedLogin(ctx context.Context, principal *Principal) error {
	return a.TrackFailedLoginTx(ctx, a.db, principal)
}

// TrackFailedLoginTx persists the failure counter and lock timestamp the
// lockout policy wrote on the model.
func (a *principals) TrackFailedLoginTx(ctx context.Context, tx bun.IDB, principal *Principal) error {
	res, err := a.Repository.RawTx(
		ctx,
		tx,
		trackFailedLoginSQL,
		principal.FailedAttempts,
		principal.LockedUntil,
		time.Now(),
		principal.ID.String(),
	)
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": principal.ID.String()})
	}

	return nil
}

func (a *principals) TrackSuccessfulLogin(ctx context.Context, principal *Principal) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, principal)
}

// TrackSuccessfulLoginTx resets the counters in the database. The raw update
// is deliberate: it must clear locked_until to NULL, which a zero-value ORM
// update would skip.
func (a *principals) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, principal *Principal) error {
	loggedInAt := principal.LastLoginAt
	if loggedInAt == nil {
		now := time.Now()
		loggedInAt = &now
	}

	res, err := a.Repository.RawTx(
		ctx,
		tx,
		trackSuccessfulLoginSQL,
		*loggedInAt,
		time.Now(),
		principal.ID.String(),
	)
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": principal.ID.String()})
	}

	return nil
}

// UpdateLock persists a manual lock or unlock applied by the policy.
func (a *principals) UpdateLock(ctx context.Context, principal *Principal) error {
	return a.TrackFailedLoginTx(ctx, a.db, principal)
}

// SetActive flips the soft activation flag with a raw update: clearing a
// boolean through the ORM would be skipped as a zero value.
func (a *principals) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := a.Repository.RawTx(ctx, a.db, setActiveSQL, active, time.Now(), id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *principals) UpdatePassword(ctx context.Context, id uuid.UUID, hash, salt string) error {
	return a.UpdatePasswordTx(ctx, a.db, id, hash, salt)
}

func (a *principals) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, hash, salt string) error {
	res, err := a.Repository.RawTx(ctx, tx, updatePasswordSQL, hash, salt, time.Now(), id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *principals) Register(ctx context.Context, principal *Principal) (*Principal, error) {
	return a.RegisterTx(ctx, a.db, principal)
}

func (a *principals) RegisterTx(ctx context.Context, tx bun.IDB, principal *Principal) (*Principal, error) {
	preparePrincipalDefaults(principal)
	return a.Repository.CreateTx(ctx, tx, principal)
}

func preparePrincipalDefaults(principal *Principal) {
	if principal.ID == uuid.Nil {
		principal.ID = uuid.New()
	}

	principal.Email = NormalizeEmail(principal.Email)
}
