package impl

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"

	deliverycontext "gateway/internal/delivery/context"
	"gateway/internal/domain/entity"
	domainerrors "gateway/internal/domain/errors"
	"gateway/internal/domain/repository"
	"gateway/internal/domain/service"
	"gateway/internal/errors"
	"gateway/internal/usecase"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/fx"
)

// maxPasswordBytes is the longest password bcrypt accepts.
const maxPasswordBytes = 72

// claimUserID is the access token claim naming the session owner.
const claimUserID = "user_id"

// Operation names reported to the AuthRecorder.
const (
	opLogin    = "login"
	opRegister = "register"
	opRefresh  = "refresh"
	opLogout   = "logout"
	opMe       = "me"
)

// authService implements the AuthUsecase interface.
type authService struct {
	txManager   repository.TransactionManager
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	verifier    usecase.CredentialVerifier
	hasher      service.PasswordHasher
	codec       service.TokenCodec
	recorder    usecase.AuthRecorder
	validate    *validator.Validate
	logger      *slog.Logger
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager   repository.TransactionManager
	UserRepo    repository.UserRepository
	SessionRepo repository.SessionRepository
	Verifier    usecase.CredentialVerifier
	Hasher      service.PasswordHasher
	Codec       service.TokenCodec
	Recorder    usecase.AuthRecorder `optional:"true"`
	Logger      *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	recorder := params.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}

	return &authService{
		txManager:   params.TxManager,
		userRepo:    params.UserRepo,
		sessionRepo: params.SessionRepo,
		verifier:    params.Verifier,
		hasher:      params.Hasher,
		codec:       params.Codec,
		recorder:    recorder,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Login verifies credentials and installs a new session, replacing any previous one of the user.
func (srv *authService) Login(ctx context.Context, input usecase.LoginInput) (pair *entity.TokenPair, err error) {
	defer func() { srv.record(opLogin, err) }()

	input.Email = entity.NormalizeEmail(input.Email)
	if err := srv.validateInput(input); err != nil {
		return nil, err
	}

	userID, err := srv.verifier.Authenticate(ctx, input.Email, input.Password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to authenticate")
	}

	pair, err = srv.issuePair(userID)
	if err != nil {
		return nil, err
	}

	var session *entity.Session
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := repoFactory.UserRepo().AcquireSessionMutex(ctx, userID); err != nil {
			return errors.Wrap(err, "failed to lock user for session replacement")
		}

		var txErr error
		session, txErr = repoFactory.SessionRepo().ReplaceSession(ctx, userID,
			entity.HashToken(pair.AccessToken), entity.HashToken(pair.RefreshToken))

		return errors.Wrap(txErr, "failed to replace session")
	})
	if err != nil {
		srv.log(ctx).Error("Failed to persist login session", slog.Any("userID", userID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute login transaction")
	}

	srv.log(ctx).Info("User logged in", slog.Any("userID", userID), slog.Any("sessionID", session.ID))

	return pair, nil
}

// Register creates a new active user with a hashed password.
func (srv *authService) Register(ctx context.Context, input usecase.RegisterInput) (err error) {
	defer func() { srv.record(opRegister, err) }()

	input.Email = entity.NormalizeEmail(input.Email)
	if err := srv.validateInput(input); err != nil {
		return err
	}
	if len(input.Password) > maxPasswordBytes {
		return domainerrors.ErrValidationFailed.WithDetails(
			fmt.Sprintf("password: must be at most %d bytes", maxPasswordBytes))
	}

	hash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		srv.log(ctx).Error("Failed to hash password", slog.Any("error", err))

		return errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
	}

	user := &entity.User{
		ID:           uuid.New(),
		Email:        input.Email,
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: hash,
		IsActive:     true,
	}

	if err := srv.userRepo.Create(ctx, user); err != nil {
		return errors.Wrap(err, "failed to create user")
	}

	srv.log(ctx).Info("User registered", slog.Any("userID", user.ID), slog.String("email", user.Email))

	return nil
}

// Refresh resolves the session by refresh token, then rotates both tokens in place.
func (srv *authService) Refresh(ctx context.Context, input usecase.RefreshInput) (pair *entity.TokenPair, err error) {
	defer func() { srv.record(opRefresh, err) }()

	if err := srv.validateInput(input); err != nil {
		return nil, err
	}

	session, err := srv.sessionRepo.FindByRefresh(ctx, entity.HashToken(input.RefreshToken))
	if err != nil {
		return nil, errors.Wrap(err, "failed to find session by refresh token")
	}

	if _, err := srv.codec.VerifyRefresh(input.RefreshToken); err != nil {
		srv.log(ctx).Info("Rejected refresh token", slog.Any("sessionID", session.ID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to verify refresh token")
	}

	if err := srv.requireActiveUser(ctx, session); err != nil {
		return nil, err
	}

	pair, err = srv.issuePair(session.UserID)
	if err != nil {
		return nil, err
	}

	rotated, err := srv.sessionRepo.UpdateTokens(ctx, session,
		entity.HashToken(pair.AccessToken), entity.HashToken(pair.RefreshToken))
	if err != nil {
		return nil, errors.Wrap(err, "failed to rotate session tokens")
	}

	srv.log(ctx).Info("Session refreshed", slog.Any("userID", rotated.UserID), slog.Any("sessionID", rotated.ID))

	return pair, nil
}

// Logout deletes the session the refresh token belongs to.
func (srv *authService) Logout(ctx context.Context, input usecase.RefreshInput) (err error) {
	defer func() { srv.record(opLogout, err) }()

	if err := srv.validateInput(input); err != nil {
		return err
	}

	refreshHash := entity.HashToken(input.RefreshToken)
	session, err := srv.sessionRepo.FindByRefresh(ctx, refreshHash)
	if err != nil {
		return errors.Wrap(err, "failed to find session by refresh token")
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := repoFactory.UserRepo().AcquireSessionMutex(ctx, session.UserID); err != nil {
			return errors.Wrap(err, "failed to lock user for logout")
		}

		// A login may have replaced the session since the lookup above.
		current, err := repoFactory.SessionRepo().FindByRefresh(ctx, refreshHash)
		if err != nil {
			return errors.Wrap(err, "session was replaced before logout")
		}

		return errors.Wrap(repoFactory.SessionRepo().DeleteByUserID(ctx, current.UserID), "failed to delete session")
	})
	if err != nil {
		return errors.Wrap(err, "failed to execute logout transaction")
	}

	srv.log(ctx).Info("User logged out", slog.Any("userID", session.UserID), slog.Any("sessionID", session.ID))

	return nil
}

// CurrentSession accepts an access token only while it belongs to the user's live session.
func (srv *authService) CurrentSession(ctx context.Context, accessToken string) (out *usecase.CurrentSessionOutput, err error) {
	defer func() { srv.record(opMe, err) }()

	claims, err := srv.codec.VerifyAccess(accessToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to verify access token")
	}

	rawUserID, _ := claims[claimUserID].(string)
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return nil, domainerrors.ErrInvalidToken.WrapMessage("access token has no valid user id")
	}

	session, err := srv.sessionRepo.FindByUserID(ctx, userID)
	if errors.Is(err, domainerrors.ErrSessionNotFound) {
		return nil, domainerrors.ErrInvalidToken.WrapMessage("access token has no live session")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find session by user")
	}

	if subtle.ConstantTimeCompare([]byte(session.AccessTokenHash), []byte(entity.HashToken(accessToken))) != 1 {
		return nil, domainerrors.ErrInvalidToken.WrapMessage("access token belongs to a replaced session")
	}

	if err := srv.requireActiveUser(ctx, session); err != nil {
		return nil, err
	}

	return &usecase.CurrentSessionOutput{UserID: session.UserID, SessionID: session.ID}, nil
}

// requireActiveUser ends the session of a user that was deactivated or removed after login.
func (srv *authService) requireActiveUser(ctx context.Context, session *entity.Session) error {
	user, err := srv.userRepo.FindByID(ctx, session.UserID)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return errors.Wrap(err, "failed to load session owner")
	}
	if err == nil && user.IsActive {
		return nil
	}

	if err := srv.sessionRepo.DeleteByUserID(ctx, session.UserID); err != nil {
		srv.log(ctx).Error("Failed to delete session of inactive user",
			slog.Any("userID", session.UserID), slog.Any("error", err))
	}
	srv.log(ctx).Info("Ended session of inactive user", slog.Any("userID", session.UserID), slog.Any("sessionID", session.ID))

	return domainerrors.ErrInvalidToken.WrapMessage("account is inactive")
}

func (srv *authService) issuePair(userID uuid.UUID) (*entity.TokenPair, error) {
	access, err := srv.codec.IssueAccess(map[string]any{claimUserID: userID.String()}, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue access token")
	}

	refresh, err := srv.codec.IssueRefresh(0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue refresh token")
	}

	return &entity.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (srv *authService) validateInput(input any) error {
	err := srv.validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrap(domainerrors.ErrValidationFailed, err.Error())
	}

	details := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, describeFieldError(fe))
	}

	return domainerrors.ErrValidationFailed.WithDetails(strings.Join(details, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + ": is required"
	case "email":
		return field + ": must be a valid email address"
	case "max":
		return field + ": must be at most " + fe.Param() + " characters"
	default:
		return field + ": is invalid"
	}
}

func (srv *authService) record(operation string, err error) {
	srv.recorder.Record(operation, outcomeOf(err))
}

// outcomeOf classifies client mistakes apart from server failures.
func outcomeOf(err error) string {
	if err == nil {
		return usecase.OutcomeSuccess
	}

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) && appErr.HTTPCode() < 500 {
		return usecase.OutcomeRejected
	}

	return usecase.OutcomeError
}

type noopRecorder struct{}

func (noopRecorder) Record(string, string) {}
