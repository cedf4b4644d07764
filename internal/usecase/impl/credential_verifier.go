// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"

	deliverycontext "gateway/internal/delivery/context"
	"gateway/internal/domain/entity"
	domainerrors "gateway/internal/domain/errors"
	"gateway/internal/domain/repository"
	"gateway/internal/domain/service"
	"gateway/internal/errors"
	"gateway/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

// credentialVerifier implements usecase.CredentialVerifier.
type credentialVerifier struct {
	userRepo repository.UserRepository
	hasher   service.PasswordHasher
	logger   *slog.Logger
}

// CredentialVerifierParams holds dependencies for the credential verifier, injected by Fx.
type CredentialVerifierParams struct {
	fx.In

	UserRepo repository.UserRepository
	Hasher   service.PasswordHasher
	Logger   *slog.Logger
}

// NewCredentialVerifier is the constructor for credentialVerifier.
func NewCredentialVerifier(params CredentialVerifierParams) usecase.CredentialVerifier {
	return &credentialVerifier{
		userRepo: params.UserRepo,
		hasher:   params.Hasher,
		logger:   params.Logger,
	}
}

// Authenticate runs exactly one password comparison per call, against the dummy
// hash when the email is unknown, so every rejection takes about as long.
func (v *credentialVerifier) Authenticate(ctx context.Context, email, password string) (uuid.UUID, error) {
	logger := deliverycontext.GetLoggerOrDefault(ctx, v.logger)

	user, err := v.userRepo.FindByEmail(ctx, entity.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return uuid.Nil, errors.Wrap(err, "failed to look up user")
		}

		v.hasher.Check(password, v.hasher.DummyHash())
		logger.Debug("Credential check failed", slog.String("reason", "unknown email"), slog.String("email", email))

		return uuid.Nil, domainerrors.ErrInvalidCredentials
	}

	if !v.hasher.Check(password, user.PasswordHash) {
		logger.Debug("Credential check failed", slog.String("reason", "password mismatch"), slog.Any("userID", user.ID))

		return uuid.Nil, domainerrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		logger.Info("Credential check failed", slog.String("reason", "inactive account"), slog.Any("userID", user.ID))

		return uuid.Nil, domainerrors.ErrInvalidCredentials
	}

	return user.ID, nil
}
