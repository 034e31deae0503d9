package profile

import (
	"context"

	"gorm.io/gorm"

	"github.com/cruxline/crux-engine/internal/apperr"
	"github.com/cruxline/crux-engine/internal/db"
)

// Profile is the display payload other components need: toast headers,
// thread titles, member lists.
type Profile struct {
	UserID      uint64 `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Lookup resolves profiles by user id, batched by id list. In production
// this is the external profile service; the engine only depends on the
// interface.
type Lookup interface {
	Profiles(ctx context.Context, ids []uint64) (map[uint64]Profile, error)
}

// DBLookup serves profiles from the local users table. Used in development
// and tests, and as the default wiring until a remote profile service is
// configured.
type DBLookup struct {
	db *gorm.DB
}

func NewDBLookup(database *gorm.DB) *DBLookup {
	return &DBLookup{db: database}
}

func (l *DBLookup) Profiles(ctx context.Context, ids []uint64) (map[uint64]Profile, error) {
	result := make(map[uint64]Profile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []db.User
	err := l.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&users).Error
	if err != nil {
		return nil, apperr.FromDB(err)
	}

	for _, u := range users {
		name := u.DisplayName
		if name == "" {
			name = u.Username
		}
		result[u.ID] = Profile{
			UserID:      u.ID,
			DisplayName: name,
			AvatarURL:   u.AvatarURL,
		}
	}
	return result, nil
}
