package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/cruxline/crux-engine/internal/apperr"
	"github.com/cruxline/crux-engine/internal/db"
)

// SwipeRepository provides data access for the append-only swipe log.
type SwipeRepository struct {
	db *gorm.DB
}

// NewSwipeRepository creates a new repository bound to the given DB connection.
func NewSwipeRepository(database *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: database}
}

// Append records a swipe by actor on target. The log is append-only: a
// second swipe on the same pair inserts a new row rather than overwriting,
// and readers take the most recent row as the actor's current intent.
func (r *SwipeRepository) Append(ctx context.Context, actorID, targetID uint64, action string) (*db.Swipe, error) {
	if actorID == targetID {
		return nil, apperr.Validation("cannot swipe on yourself")
	}
	if action != db.SwipeActionLike && action != db.SwipeActionPass {
		return nil, apperr.Validation("action must be %q or %q", db.SwipeActionLike, db.SwipeActionPass)
	}

	swipe := db.Swipe{
		ActorID:  actorID,
		TargetID: targetID,
		Action:   action,
	}
	if err := r.db.WithContext(ctx).Create(&swipe).Error; err != nil {
		return nil, apperr.FromDB(err)
	}
	return &swipe, nil
}

// LatestFor returns the most recent swipe from actor to target, or nil if
// the actor never swiped on the target.
func (r *SwipeRepository) LatestFor(ctx context.Context, actorID, targetID uint64) (*db.Swipe, error) {
	var swipe db.Swipe
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND target_id = ?", actorID, targetID).
		Order("created_at DESC, id DESC").
		First(&swipe).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.FromDB(err)
	}
	return &swipe, nil
}

// ListByActor returns the full log for one actor, oldest first. Used by
// admin tooling and the seed verifier, not the hot path.
func (r *SwipeRepository) ListByActor(ctx context.Context, actorID uint64) ([]db.Swipe, error) {
	var swipes []db.Swipe
	err := r.db.WithContext(ctx).
		Where("actor_id = ?", actorID).
		Order("created_at ASC, id ASC").
		Find(&swipes).Error
	if err != nil {
		return nil, apperr.FromDB(err)
	}
	return swipes, nil
}
