package credentials

import "time"

// LockoutPolicy is the pure decision logic over a principal's failure
// counter and lock timestamp. It owns no storage; callers persist the fields
// it mutates. Lock expiry is lazy: there is no background sweep, the next
// successful login simply clears a stale lock.
type LockoutPolicy struct {
	now Clock
}

// LockoutOption customizes policy construction.
type LockoutOption func(*LockoutPolicy)

// WithLockoutClock injects a custom clock (useful for tests).
func WithLockoutClock(clock Clock) LockoutOption {
	return func(p *LockoutPolicy) {
		if clock != nil {
			p.now = clock
		}
	}
}

// NewLockoutPolicy returns a policy evaluating against the real clock unless
// overridden.
func NewLockoutPolicy(opts ...LockoutOption) *LockoutPolicy {
	policy := &LockoutPolicy{now: time.Now}

	for _, opt := range opts {
		if opt != nil {
			opt(policy)
		}
	}

	return policy
}

// RecordFailure increments the failure counter and engages the lock once the
// counter reaches maxAttempts. It reports whether this call engaged the lock.
func (p *LockoutPolicy) RecordFailure(principal *Principal, maxAttempts int, lockout time.Duration) bool {
	principal.FailedAttempts++

	if maxAttempts <= 0 || principal.FailedAttempts < maxAttempts {
		return false
	}

	until := p.now().Add(lockout)
	principal.LockedUntil = &until

	return true
}

// RecordSuccess resets the failure counter, clears any lock, and stamps the
// last login time.
func (p *LockoutPolicy) RecordSuccess(principal *Principal) {
	principal.FailedAttempts = 0
	principal.LockedUntil = nil

	loggedIn := p.now()
	principal.LastLoginAt = &loggedIn
}

// IsLockedOut reports whether the principal carries a lock that has not yet
// expired.
func (p *LockoutPolicy) IsLockedOut(principal *Principal) bool {
	return principal.LockedUntil != nil && principal.LockedUntil.After(p.now())
}

// Lock engages a manual administrative lock, independent of the failure
// counter. Locking an already-locked principal is a conflict, not a no-op.
func (p *LockoutPolicy) Lock(principal *Principal, duration time.Duration) error {
	if p.IsLockedOut(principal) {
		return ErrAlreadyLocked
	}

	until := p.now().Add(duration)
	principal.LockedUntil = &until

	return nil
}

// Unlock clears a manual or automatic lock. Unlocking a principal that is
// not locked is a conflict, not a no-op.
func (p *LockoutPolicy) Unlock(principal *Principal) error {
	if !p.IsLockedOut(principal) {
		return ErrNotLocked
	}

	principal.LockedUntil = nil
	principal.FailedAttempts = 0

	return nil
}
