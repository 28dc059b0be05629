package credentials

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Principals() Principals
	Tenants() Tenants
	RefreshTokens() RefreshTokens
}

type mngr struct {
	db            *bun.DB
	principals    Principals
	tenants       Tenants
	refreshTokens RefreshTokens
}

// ManagerOption customizes repository construction.
type ManagerOption func(*mngr)

// WithManagerLedgerOptions forwards options to the refresh token ledger.
func WithManagerLedgerOptions(opts ...LedgerOption) ManagerOption {
	return func(m *mngr) {
		m.refreshTokens = NewRefreshTokensRepository(m.db, opts...)
	}
}

func NewRepositoryManager(db *bun.DB, opts ...ManagerOption) RepositoryManager {
	m := &mngr{
		db:            db,
		principals:    NewPrincipalsRepository(db),
		tenants:       NewTenantsRepository(db),
		refreshTokens: NewRefreshTokensRepository(db),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

func (m mngr) Validate() error {
	if m.principals == nil {
		return errors.New("repository principals should be initialized")
	}

	if m.tenants == nil {
		return errors.New("repository tenants should be initialized")
	}

	if m.refreshTokens == nil {
		return errors.New("repository refreshTokens should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Principals() Principals {
	return m.principals
}

func (m mngr) Tenants() Tenants {
	return m.tenants
}

func (m mngr) RefreshTokens() RefreshTokens {
	return m.refreshTokens
}
