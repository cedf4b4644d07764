// Package entity contains the core business objects of the gateway,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is an identity record owned by the user directory.
// The gateway only reads it, except during registration.
type User struct {
	ID           uuid.UUID // The Global Unique Identifier (GUID) for the user.
	Email        string    // Login identifier, unique and stored lower-cased.
	Name         string    // Display name supplied at registration.
	PasswordHash string    // bcrypt hash of the user's password.
	IsActive     bool      // Inactive users cannot log in.
	CreatedAt    time.Time // Timestamp of when this user account was created.
	UpdatedAt    time.Time // Timestamp of the last modification to this user's data.
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address,
// matching how emails are stored in the directory.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
