package credentials

import (
	"context"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RefreshTokenRetention is how long inactive tokens are kept before they are
// eligible for hard deletion. Routine maintenance, not correctness.
const RefreshTokenRetention = 90 * 24 * time.Hour

var consumeRefreshTokenSQL = `UPDATE "refresh_tokens" AS "rft"
SET
	"used" = TRUE,
	"revoked" = TRUE,
	"replaced_by" = ?,
	"updated_at" = ?
WHERE
	"rft"."token" = ?
AND "rft"."used" = FALSE
AND "rft"."revoked" = FALSE
RETURNING *;`

// RefreshTokens is the ledger tracking issued refresh tokens, their rotation
// chain, and revocation. Tokens move Active -> Used/Rotated or
// Active -> Revoked; expiry is derived from the clock, never stored.
type RefreshTokens interface {
	repository.Repository[*RefreshToken]

	Issue(ctx context.Context, principal *Principal, ttl time.Duration, meta TokenMetadata) (*RefreshToken, error)
	IssueTx(ctx context.Context, tx bun.IDB, principal *Principal, ttl time.Duration, meta TokenMetadata) (*RefreshToken, error)

	GetByValue(ctx context.Context, value string) (*RefreshToken, error)
	GetByValueTx(ctx context.Context, tx bun.IDB, value string) (*RefreshToken, error)

	Validate(ctx context.Context, value string) (*RefreshToken, TokenState, error)

	Rotate(ctx context.Context, old *RefreshToken, ttl time.Duration, meta TokenMetadata) (*RefreshToken, error)

	RevokeAllForPrincipal(ctx context.Context, principalID uuid.UUID) (int64, error)
	RevokeAllForPrincipalTx(ctx context.Context, tx bun.IDB, principalID uuid.UUID) (int64, error)
	RevokeAllForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)

	PruneInactive(ctx context.Context, retention time.Duration) (int64, error)
	PruneForPrincipal(ctx context.Context, principalID uuid.UUID, retention time.Duration) (int64, error)
}

type refreshTokens struct {
	repository.Repository[*RefreshToken]
	db  *bun.DB
	now Clock
}

var _ RefreshTokens = (*refreshTokens)(nil)

// LedgerOption customizes ledger construction.
type LedgerOption func(*refreshTokens)

// WithLedgerClock injects a custom clock (useful for tests).
func WithLedgerClock(clock Clock) LedgerOption {
	return func(r *refreshTokens) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewRefreshTokensRepository wires the ledger over the generic repository.
func NewRefreshTokensRepository(db *bun.DB, opts ...LedgerOption) RefreshTokens {
	repo := repository.NewRepository[*RefreshToken](db, repository.ModelHandlers[*RefreshToken]{
		NewRecord: func() *RefreshToken { return &RefreshToken{} },
		GetID: func(t *RefreshToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *RefreshToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	ledger := &refreshTokens{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ledger)
		}
	}

	return ledger
}

func (a *refreshTokens) Issue(ctx context.Context, principal *Principal, ttl time.Duration, meta TokenMetadata) (*RefreshToken, error) {
	return a.IssueTx(ctx, a.db, principal, ttl, meta)
}

// IssueTx creates a new Active token for the principal.
func (a *refreshTokens) IssueTx(ctx context.Context, tx bun.IDB, principal *Principal, ttl time.Duration, meta TokenMetadata) (*RefreshToken, error) {
	if principal == nil {
		return nil, goerrors.New("principal must not be nil", goerrors.CategoryBadInput)
	}

	if ttl <= 0 {
		return nil, goerrors.New("refresh token TTL must be positive", goerrors.CategoryBadInput)
	}

	value, err := NewRefreshTokenValue()
	if err != nil {
		return nil, err
	}

	now := a.now()
	record := &RefreshToken{
		ID:          uuid.New(),
		PrincipalID: principal.ID,
		TenantID:    principal.TenantID,
		Token:       value,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
	}

	return a.Repository.CreateTx(ctx, tx, record)
}

func (a *refreshTokens) GetByValue(ctx context.Context, value string) (*RefreshToken, error) {
	return a.GetByValueTx(ctx, a.db, value)
}

func (a *refreshTokens) GetByValueTx(ctx context.Context, tx bun.IDB, value string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

// Validate classifies the presented value. Unknown values report Invalid
// with no record; every other state returns the record so the orchestrator
// can distinguish benign revocation from reuse of a rotated token.
func (a *refreshTokens) Validate(ctx context.Context, value string) (*RefreshToken, TokenState, error) {
	record, err := a.GetByValue(ctx, value)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, TokenStateInvalid, nil
		}
		return nil, TokenStateInvalid, err
	}

	return record, record.State(a.now()), nil
}

// Rotate atomically consumes the old token and issues its successor. The
// conditional update is the single compare-and-swap in the engine: of two
// requests racing to rotate the same token exactly one wins; the loser
// observes zero updated rows and gets ErrTokenRevoked, which the
// orchestrator treats as a reuse event.
func (a *refreshTokens) Rotate(ctx context.Context, old *RefreshToken, ttl time.Duration, meta TokenMetadata) (*RefreshToken, error) {
	if old == nil {
		return nil, goerrors.New("refresh token must not be nil", goerrors.CategoryBadInput)
	}

	value, err := NewRefreshTokenValue()
	if err != nil {
		return nil, err
	}

	now := a.now()
	successor := &RefreshToken{
		ID:          uuid.New(),
		PrincipalID: old.PrincipalID,
		TenantID:    old.TenantID,
		Token:       value,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
	}

	err = a.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := a.Repository.RawTx(ctx, tx, consumeRefreshTokenSQL, successor.Token, now, old.Token)
		if err != nil {
			return err
		}

		if len(res) == 0 {
			return ErrTokenRevoked
		}

		_, err = a.Repository.CreateTx(ctx, tx, successor)
		return err
	})

	if err != nil {
		return nil, err
	}

	return successor, nil
}

func (a *refreshTokens) RevokeAllForPrincipal(ctx context.Context, principalID uuid.UUID) (int64, error) {
	return a.RevokeAllForPrincipalTx(ctx, a.db, principalID)
}

// RevokeAllForPrincipalTx revokes every currently-Active token for the
// principal in one statement: logout-everywhere, password change, and the
// reuse-detection cascade all land here.
func (a *refreshTokens) RevokeAllForPrincipalTx(ctx context.Context, tx bun.IDB, principalID uuid.UUID) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("revoked = ?", true).
		Set("updated_at = ?", a.now()).
		Where("?TableAlias.principal_id = ?", principalID).
		Where("?TableAlias.revoked = ?", false).
		Exec(ctx)

	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// RevokeAllForTenant revokes every Active token issued to the tenant's
// principals, used when the tenant's signing secret is regenerated.
func (a *refreshTokens) RevokeAllForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	res, err := a.db.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("revoked = ?", true).
		Set("updated_at = ?", a.now()).
		Where("?TableAlias.tenant_id = ?", tenantID).
		Where("?TableAlias.revoked = ?", false).
		Exec(ctx)

	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// PruneInactive hard-deletes tokens that are consumed, revoked, or expired
// and older than the retention window.
func (a *refreshTokens) PruneInactive(ctx context.Context, retention time.Duration) (int64, error) {
	return a.prune(ctx, uuid.Nil, retention)
}

// PruneForPrincipal is the opportunistic variant run after a successful
// login, limited to the authenticated principal's rows.
func (a *refreshTokens) PruneForPrincipal(ctx context.Context, principalID uuid.UUID, retention time.Duration) (int64, error) {
	return a.prune(ctx, principalID, retention)
}

func (a *refreshTokens) prune(ctx context.Context, principalID uuid.UUID, retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = RefreshTokenRetention
	}

	now := a.now()
	cutoff := now.Add(-retention)

	q := a.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("?TableAlias.issued_at < ?", cutoff).
		Where("(?TableAlias.used = ? OR ?TableAlias.revoked = ? OR ?TableAlias.expires_at < ?)", true, true, now)

	if principalID != uuid.Nil {
		q = q.Where("?TableAlias.principal_id = ?", principalID)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
