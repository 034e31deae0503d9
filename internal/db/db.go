package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cruxline/crux-engine/internal/config"
)

// NewDB initializes the database connection using DSN from config.
//
// TranslateError is on so unique-index violations surface as
// gorm.ErrDuplicatedKey regardless of driver; the create-if-absent paths
// (match pair, thread natural keys) depend on that.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DB.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate ensures the schema is in sync with the models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&User{},
		&Swipe{},
		&Match{},
		&Thread{},
		&ThreadParticipant{},
		&Message{},
		&DeviceToken{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
