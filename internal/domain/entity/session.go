package entity

import (
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record of the token pair currently valid for a user.
// At most one session exists per user; a new login replaces the previous one.
type Session struct {
	ID               uuid.UUID // The unique ID for this session record.
	UserID           uuid.UUID // Links this session to the User it belongs to.
	AccessTokenHash  string    // SHA-256 hash of the current access token.
	RefreshTokenHash string    // SHA-256 hash of the current refresh token.
	CreatedAt        time.Time // When the session was created (the login time).
	UpdatedAt        time.Time // When the token pair was last rotated.
}

// HashToken returns the storage form of a raw token: base64url(SHA-256(token)).
// Raw tokens never reach the session store.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// TokenPair is the access/refresh pair handed to a client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
