package service

import "time"

// Token types carried in the "typ" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the decoded payload of a verified token, registered claims included.
type Claims map[string]any

// TokenCodec issues and verifies signed, expiring tokens.
// Implementations are pure: no I/O, only the injected secret and the clock.
type TokenCodec interface {
	// IssueAccess signs payload plus an expiry ttl from now. A non-positive ttl
	// selects the configured access lifetime. Payload values travel as JSON, so
	// Verify returns them in decoded form: numbers as float64, slices as []any
	// and structs as map[string]any.
	IssueAccess(payload map[string]any, ttl time.Duration) (string, error)

	// IssueRefresh signs a random nonce plus an expiry ttl from now. A non-positive
	// ttl selects the configured refresh lifetime.
	IssueRefresh(ttl time.Duration) (string, error)

	// Verify checks signature, shape and expiry. Every failure is reported as
	// domainerrors.ErrInvalidToken.
	Verify(token string) (Claims, error)

	// VerifyAccess is Verify plus a check that the token is an access token.
	VerifyAccess(token string) (Claims, error)

	// VerifyRefresh is Verify plus a check that the token is a refresh token.
	VerifyRefresh(token string) (Claims, error)
}
