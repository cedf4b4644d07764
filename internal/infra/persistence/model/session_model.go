package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionModel mirrors the 'sessions' table. The unique index on user_id
// enforces one session per user at the storage level.
type SessionModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_sessions_user_id"`
	AccessTokenHash  string    `gorm:"type:varchar(64);not null"`
	RefreshTokenHash string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_sessions_refresh_token_hash"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName explicitly sets the table name for GORM.
func (SessionModel) TableName() string {
	return "sessions"
}
