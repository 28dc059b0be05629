package credentials_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, model := range []any{
		(*credentials.Principal)(nil),
		(*credentials.Tenant)(nil),
		(*credentials.RefreshToken)(nil),
	} {
		_, err := db.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}

	return db
}

// testClock is a mutable clock shared across the engine components so tests
// can advance time deterministically.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testConfig struct {
	issuer          string
	audience        []string
	platformKey     string
	accessTTL       time.Duration
	refreshTTL      time.Duration
	maxAttempts     int
	lockoutDuration time.Duration
}

func newTestConfig() testConfig {
	return testConfig{
		issuer:          "credentials-test",
		audience:        []string{"api"},
		platformKey:     "platform-signing-key-for-testing",
		accessTTL:       5 * time.Minute,
		refreshTTL:      720 * time.Hour,
		maxAttempts:     5,
		lockoutDuration: 15 * time.Minute,
	}
}

func (c testConfig) GetIssuer() string                 { return c.issuer }
func (c testConfig) GetAudience() []string             { return c.audience }
func (c testConfig) GetPlatformSigningKey() string     { return c.platformKey }
func (c testConfig) GetAccessTokenTTL() time.Duration  { return c.accessTTL }
func (c testConfig) GetRefreshTokenTTL() time.Duration { return c.refreshTTL }
func (c testConfig) GetMaxLoginAttempts() int          { return c.maxAttempts }
func (c testConfig) GetLockoutDuration() time.Duration { return c.lockoutDuration }

type capturingSink struct {
	mu     sync.Mutex
	events []credentials.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, event credentials.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturingSink) byType(eventType credentials.ActivityEventType) []credentials.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []credentials.ActivityEvent
	for _, event := range c.events {
		if event.EventType == eventType {
			out = append(out, event)
		}
	}
	return out
}

type testEngine struct {
	auth   *credentials.Authenticator
	repos  credentials.RepositoryManager
	cipher *credentials.SecretCipher
	clock  *testClock
	sink   *capturingSink
	config testConfig
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	db := setupTestDB(t)
	clock := newTestClock()
	config := newTestConfig()
	sink := &capturingSink{}

	repos := credentials.NewRepositoryManager(db,
		credentials.WithManagerLedgerOptions(credentials.WithLedgerClock(clock.Now)))

	cipher, err := credentials.NewSecretCipher(
		[]byte("an-exactly-32-byte-cipher-key!!!"),
		[]byte("a-16-byte-iv-val"),
	)
	require.NoError(t, err)

	keys := credentials.NewKeyResolver([]byte(config.platformKey), repos.Tenants(), cipher)

	auth := credentials.NewAuthenticator(repos, keys, cipher, config).
		WithActivitySink(sink).
		WithClock(clock.Now)

	return &testEngine{
		auth:   auth,
		repos:  repos,
		cipher: cipher,
		clock:  clock,
		sink:   sink,
		config: config,
	}
}

func (e *testEngine) registerPrincipal(t *testing.T, realm credentials.Realm, tenantID *uuid.UUID, email, password string) *credentials.Principal {
	t.Helper()

	principal, err := e.auth.Register(context.Background(), credentials.Registration{
		Realm:    realm,
		TenantID: tenantID,
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)

	return principal
}

func (e *testEngine) provisionTenant(t *testing.T, name string) *credentials.Tenant {
	t.Helper()

	tenant, err := e.auth.ProvisionTenant(context.Background(), &credentials.Tenant{
		Name:              name,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AccessTokenTTL:    5 * time.Minute,
		RefreshTokenTTL:   720 * time.Hour,
	})
	require.NoError(t, err)

	return tenant
}
