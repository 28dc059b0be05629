// Package credentials implements a multi-tenant credential and token engine:
// password hashing and verification, signed access-token issuance, refresh
// token rotation with reuse detection, failed-login lockout bookkeeping, and
// encryption at rest for per-tenant signing keys and provider credentials.
//
// Realms:
//   - The engine is generic over three identity realms (platform admin,
//     developer, tenant end-user). A single Authenticator serves all three,
//     parameterized by Realm; tenant end-users are additionally scoped to an
//     owning tenant for email uniqueness and signing-key resolution.
//
// Refresh token lifecycle:
//   - Every successful login issues an opaque refresh token recorded by the
//     bun-backed ledger. Refreshing rotates the token atomically: the old
//     record is marked used and revoked and linked to its successor in one
//     conditional update, so two racing rotations produce exactly one winner.
//     Presenting an already-rotated token is treated as theft and revokes
//     every outstanding token for that principal.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the Authenticator
//     to describe login, lockout, rotation, reuse-detection, and secret
//     regeneration events. Sinks run best-effort (errors are logged) so you
//     can forward to a database or queue without blocking authentication.
//
// The engine owns no HTTP surface; it is a library invoked by a transport
// boundary defined elsewhere, which maps the error taxonomy in errors.go to
// status codes.
package credentials
