// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"gateway/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// LoginInput defines the data required for a user to log in.
type LoginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// RegisterInput defines the data required to register a new user.
type RegisterInput struct {
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"required"`
	Name     string `validate:"required,max=255"`
}

// RefreshInput carries the refresh token presented by the client.
type RefreshInput struct {
	RefreshToken string `validate:"required"`
}

// --- Output DTOs ---

// CurrentSessionOutput identifies the session behind a valid access token.
type CurrentSessionOutput struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
}

// AuthUsecase is the gateway's contract with the delivery layer.
type AuthUsecase interface {
	// Login verifies credentials, replaces any session of the user and returns a fresh token pair.
	Login(ctx context.Context, input LoginInput) (*entity.TokenPair, error)

	// Register creates a user. It does not log the user in.
	Register(ctx context.Context, input RegisterInput) error

	// Refresh rotates both tokens of the session the refresh token belongs to.
	Refresh(ctx context.Context, input RefreshInput) (*entity.TokenPair, error)

	// Logout ends the session the refresh token belongs to.
	Logout(ctx context.Context, input RefreshInput) error

	// CurrentSession resolves an access token to the live session that issued it.
	CurrentSession(ctx context.Context, accessToken string) (*CurrentSessionOutput, error)
}

// CredentialVerifier checks an email/password pair against the user directory.
type CredentialVerifier interface {
	// Authenticate returns the user's ID, or domainerrors.ErrInvalidCredentials for an
	// unknown email, a wrong password and an inactive account alike.
	Authenticate(ctx context.Context, email, password string) (uuid.UUID, error)
}

// Auth operation outcomes reported to an AuthRecorder.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// AuthRecorder receives the outcome of every auth operation.
type AuthRecorder interface {
	Record(operation, outcome string)
}
