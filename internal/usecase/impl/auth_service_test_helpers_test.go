package impl

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"gateway/config"
	"gateway/internal/domain/entity"
	domainerrors "gateway/internal/domain/errors"
	"gateway/internal/domain/repository"
	"gateway/internal/domain/service"
	"gateway/internal/infra/auth"
	"gateway/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memUserRepo is an in-memory user directory keyed by email.
type memUserRepo struct {
	mu       sync.Mutex
	byEmail  map[string]*entity.User
	locks    int
	findErr  error
	createFn func(*entity.User) error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byEmail: map[string]*entity.User{}}
}

func (r *memUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byEmail {
		if u.ID == id {
			clone := *u

			return &clone, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	clone := *u

	return &clone, nil
}

func (r *memUserRepo) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createFn != nil {
		return r.createFn(user)
	}
	if _, ok := r.byEmail[user.Email]; ok {
		return domainerrors.ErrDuplicateEmail
	}
	clone := *user
	r.byEmail[user.Email] = &clone

	return nil
}

func (r *memUserRepo) AcquireSessionMutex(context.Context, uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks++

	return nil
}

// setActive flips the active flag of a stored user, as an administrator would.
func (r *memUserRepo) setActive(id uuid.UUID, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byEmail {
		if u.ID == id {
			u.IsActive = active
		}
	}
}

// remove drops a stored user from the directory.
func (r *memUserRepo) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for email, u := range r.byEmail {
		if u.ID == id {
			delete(r.byEmail, email)
		}
	}
}

// memSessionRepo keeps sessions keyed by user, mirroring the one-session-per-user index.
type memSessionRepo struct {
	mu     sync.Mutex
	byUser map[uuid.UUID]*entity.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byUser: map[uuid.UUID]*entity.Session{}}
}

func (r *memSessionRepo) ReplaceSession(_ context.Context, userID uuid.UUID, accessHash, refreshHash string) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	s := &entity.Session{
		ID:               uuid.New(),
		UserID:           userID,
		AccessTokenHash:  accessHash,
		RefreshTokenHash: refreshHash,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	r.byUser[userID] = s
	clone := *s

	return &clone, nil
}

func (r *memSessionRepo) FindByRefresh(_ context.Context, refreshHash string) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.byUser {
		if s.RefreshTokenHash == refreshHash {
			clone := *s

			return &clone, nil
		}
	}

	return nil, domainerrors.ErrSessionNotFound
}

func (r *memSessionRepo) FindByUserID(_ context.Context, userID uuid.UUID) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byUser[userID]
	if !ok {
		return nil, domainerrors.ErrSessionNotFound
	}
	clone := *s

	return &clone, nil
}

func (r *memSessionRepo) UpdateTokens(_ context.Context, session *entity.Session, accessHash, refreshHash string) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byUser[session.UserID]
	if !ok || s.ID != session.ID || s.RefreshTokenHash != session.RefreshTokenHash {
		return nil, domainerrors.ErrSessionNotFound
	}
	s.AccessTokenHash = accessHash
	s.RefreshTokenHash = refreshHash
	s.UpdatedAt = time.Now()
	clone := *s

	return &clone, nil
}

func (r *memSessionRepo) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byUser, userID)

	return nil
}

func (r *memSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.byUser)
}

// serialTxManager runs transactions one at a time, the strongest isolation a row lock could give.
type serialTxManager struct {
	mu      sync.Mutex
	factory repository.RepositoryFactory
	calls   int
}

func (tm *serialTxManager) Execute(_ context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.calls++

	return fn(tm.factory)
}

type memRepoFactory struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
}

func (f *memRepoFactory) UserRepo() repository.UserRepository       { return f.userRepo }
func (f *memRepoFactory) SessionRepo() repository.SessionRepository { return f.sessionRepo }

// countingRecorder tallies outcomes per operation.
type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) Record(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[operation+"/"+outcome]++
}

func (r *countingRecorder) get(operation, outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.counts[operation+"/"+outcome]
}

type authFixture struct {
	svc      usecase.AuthUsecase
	users    *memUserRepo
	sessions *memSessionRepo
	tx       *serialTxManager
	hasher   service.PasswordHasher
	codec    service.TokenCodec
	recorder *countingRecorder
}

const testSigningSecret = "usecase_test_signing_secret_0123456789"

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	hasher, err := auth.NewBcryptHasherWithCost(bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Auth.Secret = testSigningSecret
	codec, err := auth.NewJWTCodec(cfg)
	require.NoError(t, err)

	users := newMemUserRepo()
	sessions := newMemSessionRepo()
	tx := &serialTxManager{factory: &memRepoFactory{userRepo: users, sessionRepo: sessions}}
	recorder := &countingRecorder{}
	logger := newDiscardLogger()

	verifier := NewCredentialVerifier(CredentialVerifierParams{
		UserRepo: users,
		Hasher:   hasher,
		Logger:   logger,
	})

	svc := NewAuthService(AuthServiceParams{
		TxManager:   tx,
		UserRepo:    users,
		SessionRepo: sessions,
		Verifier:    verifier,
		Hasher:      hasher,
		Codec:       codec,
		Recorder:    recorder,
		Logger:      logger,
	})

	return &authFixture{
		svc:      svc,
		users:    users,
		sessions: sessions,
		tx:       tx,
		hasher:   hasher,
		codec:    codec,
		recorder: recorder,
	}
}

// seedUser stores an active user with the given password and returns it.
func (f *authFixture) seedUser(t *testing.T, email, password string) *entity.User {
	t.Helper()

	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)

	user := &entity.User{
		ID:           uuid.New(),
		Email:        entity.NormalizeEmail(email),
		Name:         "Test User",
		PasswordHash: hash,
		IsActive:     true,
	}
	require.NoError(t, f.users.Create(context.Background(), user))

	return user
}
