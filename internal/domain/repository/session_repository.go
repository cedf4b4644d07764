package repository

import (
	"context"

	"gateway/internal/domain/entity"

	"github.com/google/uuid"
)

// SessionRepository stores the single active session of each user.
// Implementations must make ReplaceSession atomic per user: concurrent logins
// for the same user leave exactly one session behind, the last writer's.
type SessionRepository interface {
	// ReplaceSession deletes every session of userID and inserts a new one
	// carrying the given token hashes.
	ReplaceSession(ctx context.Context, userID uuid.UUID, accessHash, refreshHash string) (*entity.Session, error)

	// FindByRefresh looks a session up by the hash of its refresh token.
	// It returns domainerrors.ErrSessionNotFound when no session matches.
	FindByRefresh(ctx context.Context, refreshHash string) (*entity.Session, error)

	// FindByUserID returns the user's current session or domainerrors.ErrSessionNotFound.
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Session, error)

	// UpdateTokens replaces both token hashes of session in place and bumps UpdatedAt.
	// The swap only happens while the stored refresh hash still equals
	// session.RefreshTokenHash; a session superseded or rotated meanwhile yields
	// domainerrors.ErrSessionNotFound.
	UpdateTokens(ctx context.Context, session *entity.Session, accessHash, refreshHash string) (*entity.Session, error)

	// DeleteByUserID removes the user's session. Deleting a missing session is not an error.
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}
