package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cruxline/crux-engine/internal/apperr"
	"github.com/cruxline/crux-engine/internal/db"
)

// DeviceTokenRepository reads and registers opaque push tokens. The push
// gateway integration owns token health; this side only stores and lists.
type DeviceTokenRepository struct {
	db *gorm.DB
}

func NewDeviceTokenRepository(database *gorm.DB) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: database}
}

// Register stores a token for a user. Idempotent on the token value.
func (r *DeviceTokenRepository) Register(ctx context.Context, userID uint64, token string) error {
	if token == "" {
		return apperr.Validation("device token must not be empty")
	}
	row := db.DeviceToken{UserID: userID, Token: token, Active: true}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "active"}),
		}).
		Create(&row).Error
	return apperr.FromDB(err)
}

// ActiveTokensFor returns the user's active tokens for push hand-off.
func (r *DeviceTokenRepository) ActiveTokensFor(ctx context.Context, userID uint64) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).
		Model(&db.DeviceToken{}).
		Where("user_id = ? AND active = ?", userID, true).
		Pluck("token", &tokens).Error
	if err != nil {
		return nil, apperr.FromDB(err)
	}
	return tokens, nil
}
