package credentials

import (
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Clock is an injectable time source so expiry and lockout behavior can be
// tested deterministically.
type Clock func() time.Time

// Config holds engine options. Tenant end-user policy comes from the Tenant
// record; these values cover the platform and developer realms and serve as
// defaults when a tenant does not override them.
type Config interface {
	GetIssuer() string
	GetAudience() []string
	GetPlatformSigningKey() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetMaxLoginAttempts() int
	GetLockoutDuration() time.Duration
}

// TokenMetadata carries advisory request origin attributes recorded alongside
// a refresh token. It is never used for enforcement.
type TokenMetadata struct {
	IP        string
	UserAgent string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] CREDENTIALS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
