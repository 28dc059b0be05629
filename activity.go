package credentials

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess       ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure       ActivityEventType = "auth.login.failure"
	ActivityEventLockoutEngaged     ActivityEventType = "auth.lockout.engaged"
	ActivityEventTokenRotated       ActivityEventType = "auth.token.rotated"
	ActivityEventTokenReuseDetected ActivityEventType = "auth.token.reuse_detected"
	ActivityEventSecretRegenerated  ActivityEventType = "tenant.secret.regenerated"
	ActivityEventRegistered         ActivityEventType = "principal.registered"
	ActivityEventPasswordChanged    ActivityEventType = "auth.password.changed"
)

// ActivityEvent captures audit-friendly information about a transition.
// Metadata never carries plaintext passwords, raw refresh-token values, or
// decrypted signing keys.
type ActivityEvent struct {
	EventType   ActivityEventType
	Realm       Realm
	PrincipalID uuid.UUID
	TenantID    *uuid.UUID
	Metadata    map[string]any
	OccurredAt  time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
