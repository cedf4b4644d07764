// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"

	"gateway/internal/domain/entity"
	"gateway/internal/errors"

	"github.com/google/uuid"
)

// ErrUserNotFound is a domain-specific error returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// UserRepository is the user directory consumed by the gateway.
type UserRepository interface {
	// FindByID retrieves a single user by their unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindByEmail retrieves a single user by their normalized email address.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// Create persists a new user. It fails with domainerrors.ErrDuplicateEmail
	// when the email is already taken.
	Create(ctx context.Context, user *entity.User) error

	// AcquireSessionMutex locks the user's row until the surrounding transaction ends.
	// Session replacement for one user is serialized through it.
	AcquireSessionMutex(ctx context.Context, id uuid.UUID) error
}
