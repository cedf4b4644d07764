package impl

import (
	"context"
	"strings"
	"sync"
	"testing"

	"gateway/internal/domain/entity"
	domainerrors "gateway/internal/domain/errors"
	"gateway/internal/errors"
	"gateway/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_LoginIssuesPairAndSession(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "alice@example.com", "correct horse")

	pair, err := f.svc.Login(context.Background(), usecase.LoginInput{Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)
	require.NotNil(t, pair)

	claims, err := f.codec.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims["user_id"])

	_, err = f.codec.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)

	session, err := f.sessions.FindByUserID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.HashToken(pair.AccessToken), session.AccessTokenHash)
	assert.Equal(t, entity.HashToken(pair.RefreshToken), session.RefreshTokenHash)
	assert.NotContains(t, session.RefreshTokenHash, pair.RefreshToken, "raw tokens are never stored")
	assert.Equal(t, 1, f.recorder.get(opLogin, usecase.OutcomeSuccess))
}

func TestAuthService_LoginRejections(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "correct horse")

	tests := []struct {
		name  string
		input usecase.LoginInput
		want  error
	}{
		{name: "missing password", input: usecase.LoginInput{Email: "alice@example.com"}, want: domainerrors.ErrValidationFailed},
		{name: "missing email", input: usecase.LoginInput{Password: "x"}, want: domainerrors.ErrValidationFailed},
		{name: "malformed email", input: usecase.LoginInput{Email: "not-an-email", Password: "x"}, want: domainerrors.ErrValidationFailed},
		{name: "wrong password", input: usecase.LoginInput{Email: "alice@example.com", Password: "wrong"}, want: domainerrors.ErrInvalidCredentials},
		{name: "unknown email", input: usecase.LoginInput{Email: "eve@example.com", Password: "correct horse"}, want: domainerrors.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := f.svc.Login(context.Background(), tt.input)
			assert.Nil(t, pair)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	assert.Equal(t, 0, f.sessions.count(), "failed logins create no session")
	assert.Equal(t, 0, f.tx.calls)
	assert.Equal(t, len(tests), f.recorder.get(opLogin, usecase.OutcomeRejected))
}

func TestAuthService_SecondLoginReplacesFirst(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "alice@example.com", "pw")
	ctx := context.Background()
	input := usecase.LoginInput{Email: "alice@example.com", Password: "pw"}

	first, err := f.svc.Login(ctx, input)
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, 1, f.sessions.count())
	assert.Equal(t, 2, f.users.locks, "each login locks the user")

	_, err = f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: first.RefreshToken})
	assert.True(t, errors.Is(err, domainerrors.ErrSessionNotFound))

	_, err = f.svc.CurrentSession(ctx, first.AccessToken)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))

	current, err := f.svc.CurrentSession(ctx, second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, current.UserID)
}

func TestAuthService_ConcurrentLoginsLeaveOneSession(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "pw")

	const logins = 8
	pairs := make([]*entity.TokenPair, logins)
	var wg sync.WaitGroup
	for i := range logins {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pair, err := f.svc.Login(context.Background(), usecase.LoginInput{Email: "alice@example.com", Password: "pw"})
			assert.NoError(t, err)
			pairs[i] = pair
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.sessions.count())

	live := 0
	for _, p := range pairs {
		require.NotNil(t, p)
		if _, err := f.svc.CurrentSession(context.Background(), p.AccessToken); err == nil {
			live++
		}
	}
	assert.Equal(t, 1, live, "exactly one login's tokens survive")
}

func TestAuthService_RefreshRotatesPair(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "alice@example.com", "pw")
	ctx := context.Background()

	login, err := f.svc.Login(ctx, usecase.LoginInput{Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)
	before, err := f.sessions.FindByUserID(ctx, user.ID)
	require.NoError(t, err)

	rotated, err := f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)
	assert.NotEqual(t, login.AccessToken, rotated.AccessToken)

	after, err := f.sessions.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID, "refresh rotates in place")

	_, err = f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: login.RefreshToken})
	assert.True(t, errors.Is(err, domainerrors.ErrSessionNotFound), "old refresh token no longer resolves")

	_, err = f.svc.CurrentSession(ctx, login.AccessToken)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken), "old access token no longer accepted")

	_, err = f.svc.CurrentSession(ctx, rotated.AccessToken)
	assert.NoError(t, err)
}

func TestAuthService_RefreshRejections(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Refresh(ctx, usecase.RefreshInput{})
	assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed))

	_, err = f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: "garbage"})
	assert.True(t, errors.Is(err, domainerrors.ErrSessionNotFound))

	// A session whose stored refresh token no longer verifies, e.g. one issued under another secret.
	userID := uuid.New()
	_, err = f.sessions.ReplaceSession(ctx, userID, "access-hash", entity.HashToken("not.a.jwt"))
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: "not.a.jwt"})
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))
}

func TestAuthService_RegisterDoesNotLogIn(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	err := f.svc.Register(ctx, usecase.RegisterInput{Email: " Carol@Example.com", Password: "s3cret", Name: "Carol"})
	require.NoError(t, err)
	assert.Equal(t, 0, f.sessions.count())

	stored, err := f.users.FindByEmail(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.NotEqual(t, "s3cret", stored.PasswordHash)
	assert.True(t, f.hasher.Check("s3cret", stored.PasswordHash))

	_, err = f.svc.Login(ctx, usecase.LoginInput{Email: "carol@example.com", Password: "s3cret"})
	assert.NoError(t, err)
}

func TestAuthService_LoginNormalizesEmail(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "alice@example.com", "pw")

	for _, email := range []string{" Alice@Example.com", "ALICE@EXAMPLE.COM\t", "alice@example.com  "} {
		t.Run(email, func(t *testing.T) {
			pair, err := f.svc.Login(context.Background(), usecase.LoginInput{Email: email, Password: "pw"})
			require.NoError(t, err)

			claims, err := f.codec.VerifyAccess(pair.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, user.ID.String(), claims["user_id"])
		})
	}
}

func TestAuthService_InactiveUserLosesSession(t *testing.T) {
	tests := []struct {
		name    string
		disable func(f *authFixture, id uuid.UUID)
	}{
		{name: "deactivated", disable: func(f *authFixture, id uuid.UUID) { f.users.setActive(id, false) }},
		{name: "removed", disable: func(f *authFixture, id uuid.UUID) { f.users.remove(id) }},
	}

	for _, tt := range tests {
		t.Run(tt.name+" refresh", func(t *testing.T) {
			f := newAuthFixture(t)
			user := f.seedUser(t, "alice@example.com", "pw")
			ctx := context.Background()

			pair, err := f.svc.Login(ctx, usecase.LoginInput{Email: "alice@example.com", Password: "pw"})
			require.NoError(t, err)
			tt.disable(f, user.ID)

			rotated, err := f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: pair.RefreshToken})
			assert.Nil(t, rotated)
			assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken), "got %v", err)
			assert.Equal(t, 0, f.sessions.count(), "session is ended")

			_, err = f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: pair.RefreshToken})
			assert.True(t, errors.Is(err, domainerrors.ErrSessionNotFound))
		})

		t.Run(tt.name+" current session", func(t *testing.T) {
			f := newAuthFixture(t)
			user := f.seedUser(t, "alice@example.com", "pw")
			ctx := context.Background()

			pair, err := f.svc.Login(ctx, usecase.LoginInput{Email: "alice@example.com", Password: "pw"})
			require.NoError(t, err)
			tt.disable(f, user.ID)

			_, err = f.svc.CurrentSession(ctx, pair.AccessToken)
			assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken), "got %v", err)
			assert.Equal(t, 0, f.sessions.count(), "session is ended")
			assert.Equal(t, 1, f.recorder.get(opMe, usecase.OutcomeRejected))
		})
	}
}

func TestAuthService_RegisterRejections(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "pw")

	tests := []struct {
		name  string
		input usecase.RegisterInput
		want  error
	}{
		{name: "duplicate email", input: usecase.RegisterInput{Email: "ALICE@example.com", Password: "pw", Name: "A"}, want: domainerrors.ErrDuplicateEmail},
		{name: "missing name", input: usecase.RegisterInput{Email: "new@example.com", Password: "pw"}, want: domainerrors.ErrValidationFailed},
		{name: "missing password", input: usecase.RegisterInput{Email: "new@example.com", Name: "N"}, want: domainerrors.ErrValidationFailed},
		{name: "bad email", input: usecase.RegisterInput{Email: "new", Password: "pw", Name: "N"}, want: domainerrors.ErrValidationFailed},
		{name: "password too long", input: usecase.RegisterInput{Email: "new@example.com", Password: strings.Repeat("p", 73), Name: "N"}, want: domainerrors.ErrValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.Register(context.Background(), tt.input)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestAuthService_ValidationDetails(t *testing.T) {
	f := newAuthFixture(t)

	err := f.svc.Register(context.Background(), usecase.RegisterInput{Email: "bad"})

	var appErr domainerrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VALIDATION_FAILED", appErr.ErrorCode())
	assert.Contains(t, appErr.Details(), "email: must be a valid email address")
	assert.Contains(t, appErr.Details(), "name: is required")
}

func TestAuthService_Logout(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "pw")
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, usecase.LoginInput{Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, usecase.RefreshInput{RefreshToken: pair.RefreshToken}))
	assert.Equal(t, 0, f.sessions.count())

	err = f.svc.Logout(ctx, usecase.RefreshInput{RefreshToken: pair.RefreshToken})
	assert.True(t, errors.Is(err, domainerrors.ErrSessionNotFound))

	_, err = f.svc.CurrentSession(ctx, pair.AccessToken)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))
}

func TestAuthService_CurrentSessionRejectsRefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "pw")

	pair, err := f.svc.Login(context.Background(), usecase.LoginInput{Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = f.svc.CurrentSession(context.Background(), pair.RefreshToken)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidToken))
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, usecase.OutcomeSuccess, outcomeOf(nil))
	assert.Equal(t, usecase.OutcomeRejected, outcomeOf(errors.Wrap(domainerrors.ErrSessionNotFound, "ctx")))
	assert.Equal(t, usecase.OutcomeError, outcomeOf(errors.New("boom")))
	assert.Equal(t, usecase.OutcomeError, outcomeOf(domainerrors.ErrTransactionFailed))
}
