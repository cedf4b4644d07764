package postgres

import (
	"context"
	"time"

	"gateway/internal/domain/entity"
	domainerrors "gateway/internal/domain/errors"
	"gateway/internal/domain/repository"
	"gateway/internal/errors"
	"gateway/internal/infra/persistence/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// sessionRepository implements the domain.SessionRepository interface using GORM.
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository is the constructor for sessionRepository.
func NewSessionRepository(db *gorm.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// ReplaceSession locks the user row, removes any session of the user and inserts the new one.
// Inside a caller's transaction it runs under a savepoint; the lock is held until the caller commits.
func (repo *sessionRepository) ReplaceSession(ctx context.Context, userID uuid.UUID, accessHash, refreshHash string) (*entity.Session, error) {
	now := time.Now().UTC()
	sessionM := &model.SessionModel{
		ID:               uuid.New(),
		UserID:           userID,
		AccessTokenHash:  accessHash,
		RefreshTokenHash: refreshHash,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked model.UserModel
		if err := lockUserQuery(tx, userID).Take(&locked).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrUserNotFound
			}

			return domainerrors.NewDatabaseExecuteError(err, "failed to lock user row")
		}

		if err := tx.Where("user_id = ?", userID).Delete(&model.SessionModel{}).Error; err != nil {
			return domainerrors.NewDatabaseExecuteError(err, "failed to delete previous session")
		}

		if err := tx.Create(sessionM).Error; err != nil {
			if isForeignKeyConstraintViolation(err) {
				return repository.ErrUserNotFound
			}

			return domainerrors.NewDatabaseExecuteError(err, "failed to create session")
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to replace session")
	}

	return toSessionDomain(sessionM), nil
}

// FindByRefresh looks a session up by the hash of its refresh token.
func (repo *sessionRepository) FindByRefresh(ctx context.Context, refreshHash string) (*entity.Session, error) {
	return repo.findOne(ctx, "refresh_token_hash = ?", refreshHash)
}

// FindByUserID returns the user's current session.
func (repo *sessionRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Session, error) {
	return repo.findOne(ctx, "user_id = ?", userID)
}

func (repo *sessionRepository) findOne(ctx context.Context, cond string, arg any) (*entity.Session, error) {
	var sessionM model.SessionModel
	if err := repo.db.WithContext(ctx).Where(cond, arg).Take(&sessionM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrSessionNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find session")
	}

	return toSessionDomain(&sessionM), nil
}

// UpdateTokens swaps both hashes only while the stored refresh hash is still the one the caller saw.
func (repo *sessionRepository) UpdateTokens(ctx context.Context, session *entity.Session, accessHash, refreshHash string) (*entity.Session, error) {
	now := time.Now().UTC()

	result := rotateTokensQuery(repo.db.WithContext(ctx), session, accessHash, refreshHash, now)
	if result.Error != nil {
		return nil, domainerrors.NewDatabaseExecuteError(result.Error, "failed to rotate session tokens")
	}
	if result.RowsAffected == 0 {
		return nil, domainerrors.ErrSessionNotFound
	}

	rotated := *session
	rotated.AccessTokenHash = accessHash
	rotated.RefreshTokenHash = refreshHash
	rotated.UpdatedAt = now

	return &rotated, nil
}

// DeleteByUserID removes the user's session, if any.
func (repo *sessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if err := repo.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.SessionModel{}).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to delete session")
	}

	return nil
}

// rotateTokensQuery is a compare-and-swap on (id, refresh_token_hash).
func rotateTokensQuery(db *gorm.DB, session *entity.Session, accessHash, refreshHash string, now time.Time) *gorm.DB {
	return db.Model(&model.SessionModel{}).
		Where("id = ? AND refresh_token_hash = ?", session.ID, session.RefreshTokenHash).
		Updates(map[string]any{
			"access_token_hash":  accessHash,
			"refresh_token_hash": refreshHash,
			"updated_at":         now,
		})
}

// --- Mapper Functions ---

func toSessionDomain(data *model.SessionModel) *entity.Session {
	if data == nil {
		return nil
	}

	return &entity.Session{
		ID:               data.ID,
		UserID:           data.UserID,
		AccessTokenHash:  data.AccessTokenHash,
		RefreshTokenHash: data.RefreshTokenHash,
		CreatedAt:        data.CreatedAt,
		UpdatedAt:        data.UpdatedAt,
	}
}
