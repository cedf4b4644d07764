// Package service defines interfaces for core, stateless domain logic.
// These services encapsulate business rules that don't naturally fit within a single entity.
package service

// PasswordHasher defines the interface for password hashing and verification.
// This abstracts the underlying hashing algorithm (e.g., bcrypt), keeping the domain pure.
type PasswordHasher interface {
	// Hash generates a salted hash from a plaintext password.
	Hash(password string) (string, error)

	// Check compares a plaintext password with a hash to see if they match.
	// The comparison runs in constant time with respect to the password.
	Check(password, hash string) bool

	// DummyHash returns a valid hash of an unguessable secret. Comparing against
	// it costs the same as a real check, which keeps unknown-user logins as slow as
	// wrong-password logins.
	DummyHash() string
}
