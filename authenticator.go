package credentials

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// TokenPair is the access + refresh credential pair returned by Login and
// Refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// IntrospectionResult reports access-token liveness. Introspection is a
// boolean check, not an auth gate: principal or tenant mismatches yield
// Active=false rather than an error.
type IntrospectionResult struct {
	Active      bool
	PrincipalID uuid.UUID
	Realm       Realm
	Claims      *AccessClaims
}

type realmSettings struct {
	maxAttempts     int
	lockoutDuration time.Duration
	accessTTL       time.Duration
	refreshTTL      time.Duration
}

// Authenticator composes the hasher, cipher, lockout policy, token issuer,
// and refresh token ledger into login, refresh, and introspection for all
// three realms. One generic engine, parameterized by Realm, replaces what
// would otherwise be three parallel code paths.
type Authenticator struct {
	repos        RepositoryManager
	keys         KeyResolver
	cipher       *SecretCipher
	issuer       *TokenIssuer
	lockout      *LockoutPolicy
	config       Config
	logger       Logger
	activitySink ActivitySink
	now          Clock
}

// NewAuthenticator returns a new Authenticator over the given repositories,
// key resolver, and secret cipher.
func NewAuthenticator(repos RepositoryManager, keys KeyResolver, cipher *SecretCipher, cfg Config) *Authenticator {
	return &Authenticator{
		repos:        repos,
		keys:         keys,
		cipher:       cipher,
		issuer:       NewTokenIssuer(cfg.GetIssuer(), cfg.GetAudience()),
		lockout:      NewLockoutPolicy(),
		config:       cfg,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (s *Authenticator) WithLogger(logger Logger) *Authenticator {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Authenticator) WithActivitySink(sink ActivitySink) *Authenticator {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithClock injects a custom clock into the orchestrator, lockout policy,
// and token issuer (useful for tests). The ledger clock is configured on the
// repository manager.
func (s *Authenticator) WithClock(clock Clock) *Authenticator {
	if clock == nil {
		return s
	}

	s.now = clock
	s.lockout = NewLockoutPolicy(WithLockoutClock(clock))
	s.issuer = NewTokenIssuer(
		s.config.GetIssuer(),
		s.config.GetAudience(),
		WithIssuerClock(clock),
		WithIssuerLogger(s.logger),
	)
	return s
}

// TokenIssuer returns the TokenIssuer instance used by this Authenticator.
func (s *Authenticator) TokenIssuer() *TokenIssuer {
	return s.issuer
}

// Login resolves the principal by normalized email within the realm scope,
// applies the lockout policy, verifies the password, and on success issues
// an access + refresh pair. Nonexistent principals and wrong passwords both
// return ErrInvalidCredentials so accounts cannot be enumerated.
func (s *Authenticator) Login(ctx context.Context, realm Realm, tenantID *uuid.UUID, email, password string, meta TokenMetadata) (*TokenPair, error) {
	if !realm.Valid() {
		return nil, goerrors.New("unknown realm", goerrors.CategoryBadInput)
	}

	settings, err := s.settingsFor(ctx, realm, tenantID)
	if err != nil {
		return nil, err
	}

	principal, err := s.repos.Principals().GetByEmail(ctx, realm, tenantID, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.emitEvent(ctx, ActivityEventLoginFailure, realm, uuid.Nil, tenantID, map[string]any{
				"reason": "principal_not_found",
			})
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve principal")
	}

	if !principal.Active {
		s.emitEvent(ctx, ActivityEventLoginFailure, realm, principal.ID, tenantID, map[string]any{
			"reason": "principal_inactive",
		})
		return nil, ErrInactive
	}

	if s.lockout.IsLockedOut(principal) {
		s.emitEvent(ctx, ActivityEventLoginFailure, realm, principal.ID, tenantID, map[string]any{
			"reason": "locked_out",
		})
		return nil, lockedOutError(*principal.LockedUntil)
	}

	if !VerifyPassword(password, principal.PasswordHash, principal.PasswordSalt) {
		engaged := s.lockout.RecordFailure(principal, settings.maxAttempts, settings.lockoutDuration)

		if err := s.repos.Principals().TrackFailedLogin(ctx, principal); err != nil {
			s.logger.Error("failed to persist login failure", "error", err, "principal", principal.ID)
		}

		s.emitEvent(ctx, ActivityEventLoginFailure, realm, principal.ID, tenantID, map[string]any{
			"reason":   "invalid_password",
			"attempts": principal.FailedAttempts,
		})

		if engaged {
			s.emitEvent(ctx, ActivityEventLockoutEngaged, realm, principal.ID, tenantID, map[string]any{
				"locked_until": principal.LockedUntil,
			})
		}

		return nil, ErrInvalidCredentials
	}

	s.lockout.RecordSuccess(principal)
	if err := s.repos.Principals().TrackSuccessfulLogin(ctx, principal); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist login success")
	}

	pair, err := s.issuePair(ctx, principal, settings, meta)
	if err != nil {
		return nil, err
	}

	if _, err := s.repos.RefreshTokens().PruneForPrincipal(ctx, principal.ID, RefreshTokenRetention); err != nil {
		s.logger.Warn("failed to prune inactive refresh tokens", "error", err, "principal", principal.ID)
	}

	s.emitEvent(ctx, ActivityEventLoginSuccess, realm, principal.ID, tenantID, nil)

	return pair, nil
}

// Refresh validates and rotates a refresh token, returning a fresh pair. A
// token that was already consumed by rotation is treated as stolen: every
// outstanding token for the owning principal is revoked before the
// ErrTokenRevoked result is returned.
func (s *Authenticator) Refresh(ctx context.Context, realm Realm, refreshValue string, meta TokenMetadata) (*TokenPair, error) {
	if !realm.Valid() {
		return nil, goerrors.New("unknown realm", goerrors.CategoryBadInput)
	}

	record, state, err := s.repos.RefreshTokens().Validate(ctx, refreshValue)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up refresh token")
	}

	switch state {
	case TokenStateInvalid:
		return nil, ErrTokenInvalid
	case TokenStateExpired:
		return nil, ErrTokenExpired
	case TokenStateRevoked:
		if record.ConsumedByRotation() {
			return nil, s.handleReuse(ctx, realm, record)
		}
		return nil, ErrTokenRevoked
	}

	principal, err := s.repos.Principals().FindByID(ctx, record.PrincipalID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInactive
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve principal")
	}

	// the token is only redeemable through the realm it was issued for,
	// otherwise a tenant-user token could mint pairs under the platform
	// key and TTL policy
	if principal.Realm != realm {
		return nil, ErrTokenInvalid
	}

	// a principal deactivated after issuance must not refresh
	if !principal.Active {
		return nil, ErrInactive
	}

	if s.lockout.IsLockedOut(principal) {
		return nil, lockedOutError(*principal.LockedUntil)
	}

	settings, err := s.settingsFor(ctx, realm, principal.TenantID)
	if err != nil {
		return nil, err
	}

	successor, err := s.repos.RefreshTokens().Rotate(ctx, record, settings.refreshTTL, meta)
	if err != nil {
		if goerrors.Is(err, ErrTokenRevoked) {
			// lost the rotation race; same treatment as replaying a
			// consumed token
			return nil, s.handleReuse(ctx, realm, record)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to rotate refresh token")
	}

	key, err := s.keys.SigningKey(ctx, realm, principal.TenantID)
	if err != nil {
		return nil, err
	}

	access, claims, err := s.issuer.IssueAccessToken(principal, key, settings.accessTTL)
	if err != nil {
		return nil, err
	}

	s.emitEvent(ctx, ActivityEventTokenRotated, realm, principal.ID, principal.TenantID, nil)

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     successor.Token,
		AccessExpiresAt:  claims.ExpiresAt.Time,
		RefreshExpiresAt: successor.ExpiresAt,
	}, nil
}

// Introspect verifies an access token and re-checks, at lookup time, that
// the owning principal still exists and is active and that the tenant
// embedded in the token matches the caller's tenant context. It does not
// re-derive revocation from the refresh chain.
func (s *Authenticator) Introspect(ctx context.Context, realm Realm, tenantID *uuid.UUID, accessToken string) (*IntrospectionResult, error) {
	inactive := &IntrospectionResult{Active: false, Realm: realm}

	if realm.TenantScoped() && tenantID == nil {
		return inactive, nil
	}

	key, err := s.keys.SigningKey(ctx, realm, tenantID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return inactive, nil
		}
		return nil, err
	}

	claims, err := s.issuer.ValidateAccessToken(accessToken, key)
	if err != nil {
		return inactive, nil
	}

	if claims.Realm != realm {
		return inactive, nil
	}

	principalID, err := claims.PrincipalID()
	if err != nil {
		return inactive, nil
	}

	principal, err := s.repos.Principals().FindByID(ctx, principalID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return inactive, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve principal")
	}

	if !principal.Active {
		return inactive, nil
	}

	if realm.TenantScoped() {
		issuingTenant, err := claims.IssuingTenantID()
		if err != nil || issuingTenant == nil || tenantID == nil || *issuingTenant != *tenantID {
			return inactive, nil
		}

		if principal.TenantID == nil || *principal.TenantID != *tenantID {
			return inactive, nil
		}
	}

	return &IntrospectionResult{
		Active:      true,
		PrincipalID: principalID,
		Realm:       realm,
		Claims:      claims,
	}, nil
}

// LogoutEverywhere revokes every outstanding refresh token for the
// principal.
func (s *Authenticator) LogoutEverywhere(ctx context.Context, principalID uuid.UUID) (int64, error) {
	return s.repos.RefreshTokens().RevokeAllForPrincipal(ctx, principalID)
}

// ChangePassword verifies the current credential, stores a new hash, and
// revokes all outstanding refresh tokens so stolen sessions do not survive
// the change.
func (s *Authenticator) ChangePassword(ctx context.Context, principalID uuid.UUID, current, next string) error {
	principal, err := s.repos.Principals().FindByID(ctx, principalID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrInvalidCredentials
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve principal")
	}

	if !VerifyPassword(current, principal.PasswordHash, principal.PasswordSalt) {
		return ErrInvalidCredentials
	}

	hash, salt, err := HashPassword(next)
	if err != nil {
		return err
	}

	if err := s.repos.Principals().UpdatePassword(ctx, principal.ID, hash, salt); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
	}

	if _, err := s.repos.RefreshTokens().RevokeAllForPrincipal(ctx, principal.ID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke refresh tokens")
	}

	s.emitEvent(ctx, ActivityEventPasswordChanged, principal.Realm, principal.ID, principal.TenantID, nil)

	return nil
}

// LockPrincipal engages a manual administrative lock.
func (s *Authenticator) LockPrincipal(ctx context.Context, principalID uuid.UUID, duration time.Duration) error {
	principal, err := s.repos.Principals().FindByID(ctx, principalID)
	if err != nil {
		return err
	}

	if err := s.lockout.Lock(principal, duration); err != nil {
		return err
	}

	return s.repos.Principals().UpdateLock(ctx, principal)
}

// UnlockPrincipal clears a lock early.
func (s *Authenticator) UnlockPrincipal(ctx context.Context, principalID uuid.UUID) error {
	principal, err := s.repos.Principals().FindByID(ctx, principalID)
	if err != nil {
		return err
	}

	if err := s.lockout.Unlock(principal); err != nil {
		return err
	}

	return s.repos.Principals().UpdateLock(ctx, principal)
}

// RegenerateTenantSigningKey replaces the tenant's signing secret with a
// fresh random key and revokes every refresh token issued under the old one,
// forcing the tenant's population to re-authenticate.
func (s *Authenticator) RegenerateTenantSigningKey(ctx context.Context, tenantID uuid.UUID) error {
	key, err := RandomSigningKey()
	if err != nil {
		return err
	}

	if err := s.repos.Tenants().UpdateSigningKey(ctx, tenantID, s.cipher.Encrypt(key)); err != nil {
		return err
	}

	if _, err := s.repos.RefreshTokens().RevokeAllForTenant(ctx, tenantID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke tenant refresh tokens")
	}

	s.emitEvent(ctx, ActivityEventSecretRegenerated, RealmTenantUser, uuid.Nil, &tenantID, nil)

	return nil
}

// SetProviderCredential encrypts and stores a third-party credential for the
// tenant.
func (s *Authenticator) SetProviderCredential(ctx context.Context, tenantID uuid.UUID, name, plaintext string) error {
	return s.repos.Tenants().SetProviderCredential(ctx, tenantID, name, s.cipher.Encrypt(plaintext))
}

// ProviderCredential retrieves and decrypts a stored provider credential.
func (s *Authenticator) ProviderCredential(ctx context.Context, tenantID uuid.UUID, name string) (string, error) {
	tenant, err := s.repos.Tenants().FindByID(ctx, tenantID)
	if err != nil {
		return "", err
	}

	ciphertext, ok := tenant.ProviderCredentials[name]
	if !ok {
		return "", goerrors.New("provider credential not found", goerrors.CategoryNotFound).
			WithMetadata(map[string]any{"provider": name})
	}

	return s.cipher.Decrypt(ciphertext)
}

// handleReuse runs the cascade: a rotated token presented again blows up the
// entire session tree for the principal, not just itself.
func (s *Authenticator) handleReuse(ctx context.Context, realm Realm, record *RefreshToken) error {
	revoked, err := s.repos.RefreshTokens().RevokeAllForPrincipal(ctx, record.PrincipalID)
	if err != nil {
		s.logger.Error("failed to cascade revoke after token reuse", "error", err, "principal", record.PrincipalID)
	}

	s.emitEvent(ctx, ActivityEventTokenReuseDetected, realm, record.PrincipalID, record.TenantID, map[string]any{
		"revoked": revoked,
	})

	return ErrTokenRevoked
}

func (s *Authenticator) issuePair(ctx context.Context, principal *Principal, settings realmSettings, meta TokenMetadata) (*TokenPair, error) {
	key, err := s.keys.SigningKey(ctx, principal.Realm, principal.TenantID)
	if err != nil {
		return nil, err
	}

	access, claims, err := s.issuer.IssueAccessToken(principal, key, settings.accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := s.repos.RefreshTokens().Issue(ctx, principal, settings.refreshTTL, meta)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record refresh token")
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  claims.ExpiresAt.Time,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// settingsFor resolves the lockout and TTL policy for the realm: tenant
// end-users inherit their tenant's settings, the platform and developer
// realms use the engine configuration.
func (s *Authenticator) settingsFor(ctx context.Context, realm Realm, tenantID *uuid.UUID) (realmSettings, error) {
	settings := realmSettings{
		maxAttempts:     s.config.GetMaxLoginAttempts(),
		lockoutDuration: s.config.GetLockoutDuration(),
		accessTTL:       s.config.GetAccessTokenTTL(),
		refreshTTL:      s.config.GetRefreshTokenTTL(),
	}

	if !realm.TenantScoped() {
		return settings, nil
	}

	if tenantID == nil {
		return settings, goerrors.New("tenant id is required for tenant-scoped realms", goerrors.CategoryBadInput)
	}

	tenant, err := s.repos.Tenants().FindByID(ctx, *tenantID)
	if err != nil {
		return settings, err
	}

	if !tenant.Active {
		return settings, ErrInactive
	}

	if tenant.MaxFailedAttempts > 0 {
		settings.maxAttempts = tenant.MaxFailedAttempts
	}
	if tenant.LockoutDuration > 0 {
		settings.lockoutDuration = tenant.LockoutDuration
	}
	if tenant.AccessTokenTTL > 0 {
		settings.accessTTL = tenant.AccessTokenTTL
	}
	if tenant.RefreshTokenTTL > 0 {
		settings.refreshTTL = tenant.RefreshTokenTTL
	}

	return settings, nil
}

func (s *Authenticator) emitEvent(ctx context.Context, eventType ActivityEventType, realm Realm, principalID uuid.UUID, tenantID *uuid.UUID, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)

	event := ActivityEvent{
		EventType:   eventType,
		Realm:       realm,
		PrincipalID: principalID,
		TenantID:    tenantID,
		Metadata:    metadata,
		OccurredAt:  s.now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}
