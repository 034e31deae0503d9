package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cruxline/crux-engine/internal/apperr"
	"github.com/cruxline/crux-engine/internal/db"
)

// ThreadRepository provides data access for conversation threads and their
// participant rows. All creators are create-if-absent on the thread's
// natural key (match id, gym id + title, crew id); a second call with the
// same key returns the existing row.
type ThreadRepository struct {
	db *gorm.DB
}

// NewThreadRepository creates a new repository bound to the given DB connection.
func NewThreadRepository(database *gorm.DB) *ThreadRepository {
	return &ThreadRepository{db: database}
}

// EnsureDirect materializes the 1:1 thread for a match. Idempotent on
// match_id, so the eager creation at match time and any later lazy call
// converge on one row.
func (r *ThreadRepository) EnsureDirect(ctx context.Context, match *db.Match) (*db.Thread, error) {
	matchID := match.ID
	userA, userB := match.UserA, match.UserB
	thread := db.Thread{
		Type:    db.ThreadTypeDirect,
		MatchID: &matchID,
		UserA:   &userA,
		UserB:   &userB,
	}
	return r.ensure(ctx, &thread, []clause.Column{{Name: "match_id"}}, "match_id = ?", matchID)
}

// EnsureGym materializes the group thread for (gymID, title). Title
// canonicalization and allow-listing happen in the service layer; the
// repository only guarantees one row per natural key.
func (r *ThreadRepository) EnsureGym(ctx context.Context, gymID uint64, title string) (*db.Thread, error) {
	gym := gymID
	thread := db.Thread{
		Type:  db.ThreadTypeGym,
		GymID: &gym,
		Title: title,
	}
	return r.ensure(ctx, &thread,
		[]clause.Column{{Name: "gym_id"}, {Name: "title"}},
		"gym_id = ? AND title = ?", gymID, title)
}

// EnsureCrew materializes the single thread for a crew.
func (r *ThreadRepository) EnsureCrew(ctx context.Context, crewID uint64, title string) (*db.Thread, error) {
	crew := crewID
	thread := db.Thread{
		Type:   db.ThreadTypeCrew,
		CrewID: &crew,
		Title:  title,
	}
	return r.ensure(ctx, &thread, []clause.Column{{Name: "crew_id"}}, "crew_id = ?", crewID)
}

// ensure inserts with ON CONFLICT DO NOTHING on the natural key and
// re-fetches when the insert lost to an existing row.
func (r *ThreadRepository) ensure(ctx context.Context, thread *db.Thread, key []clause.Column, query string, args ...any) (*db.Thread, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: key, DoNothing: true}).
		Create(thread)
	if res.Error != nil {
		if !apperr.IsConflict(apperr.FromDB(res.Error)) {
			return nil, apperr.FromDB(res.Error)
		}
	} else if res.RowsAffected > 0 && thread.ID != 0 {
		return thread, nil
	}

	var existing db.Thread
	if err := r.db.WithContext(ctx).Where(query, args...).First(&existing).Error; err != nil {
		return nil, apperr.FromDB(err)
	}
	return &existing, nil
}

// GetByID returns a thread by primary key.
func (r *ThreadRepository) GetByID(ctx context.Context, id uint64) (*db.Thread, error) {
	var thread db.Thread
	if err := r.db.WithContext(ctx).First(&thread, id).Error; err != nil {
		return nil, apperr.FromDB(err)
	}
	return &thread, nil
}

// AddParticipant enrolls a user in a group thread. Idempotent on the
// composite key.
func (r *ThreadRepository) AddParticipant(ctx context.Context, threadID, userID uint64) error {
	p := db.ThreadParticipant{ThreadID: threadID, UserID: userID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "thread_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&p).Error
	if err != nil && !apperr.IsConflict(apperr.FromDB(err)) {
		return apperr.FromDB(err)
	}
	return nil
}

// IsParticipant reports whether the user may read/write the thread:
// user_a/user_b for direct threads, a participant row for gym/crew.
func (r *ThreadRepository) IsParticipant(ctx context.Context, thread *db.Thread, userID uint64) (bool, error) {
	if thread.Type == db.ThreadTypeDirect {
		return (thread.UserA != nil && *thread.UserA == userID) ||
			(thread.UserB != nil && *thread.UserB == userID), nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.ThreadParticipant{}).
		Where("thread_id = ? AND user_id = ?", thread.ID, userID).
		Count(&count).Error
	if err != nil {
		return false, apperr.FromDB(err)
	}
	return count > 0, nil
}

// ListParticipants returns the user ids authorized for a thread.
func (r *ThreadRepository) ListParticipants(ctx context.Context, thread *db.Thread) ([]uint64, error) {
	if thread.Type == db.ThreadTypeDirect {
		ids := make([]uint64, 0, 2)
		if thread.UserA != nil {
			ids = append(ids, *thread.UserA)
		}
		if thread.UserB != nil {
			ids = append(ids, *thread.UserB)
		}
		return ids, nil
	}
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.ThreadParticipant{}).
		Where("thread_id = ?", thread.ID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, apperr.FromDB(err)
	}
	return ids, nil
}

// ListForUser returns every non-crew thread the user can see, exactly once,
// whether reachable through the direct columns or a participant row. Crew
// threads surface only through ListCrewForUser.
func (r *ThreadRepository) ListForUser(ctx context.Context, userID uint64) ([]db.Thread, error) {
	var threads []db.Thread
	err := r.db.WithContext(ctx).
		Model(&db.Thread{}).
		Distinct("threads.*").
		Joins("LEFT JOIN thread_participants p ON p.thread_id = threads.id AND p.user_id = ?", userID).
		Where("threads.type <> ?", db.ThreadTypeCrew).
		Where("threads.user_a = ? OR threads.user_b = ? OR p.user_id IS NOT NULL", userID, userID).
		Order("threads.last_message_at DESC, threads.id DESC").
		Find(&threads).Error
	if err != nil {
		return nil, apperr.FromDB(err)
	}
	return threads, nil
}

// ListCrewForUser returns the crew threads the user participates in.
func (r *ThreadRepository) ListCrewForUser(ctx context.Context, userID uint64) ([]db.Thread, error) {
	var threads []db.Thread
	err := r.db.WithContext(ctx).
		Model(&db.Thread{}).
		Joins("JOIN thread_participants p ON p.thread_id = threads.id AND p.user_id = ?", userID).
		Where("threads.type = ?", db.ThreadTypeCrew).
		Order("threads.last_message_at DESC, threads.id DESC").
		Find(&threads).Error
	if err != nil {
		return nil, apperr.FromDB(err)
	}
	return threads, nil
}

// UpdateLastMessage refreshes the thread's cached preview of its newest
// message.
func (r *ThreadRepository) UpdateLastMessage(ctx context.Context, threadID uint64, body string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&db.Thread{}).
		Where("id = ?", threadID).
		Updates(map[string]any{
			"last_message":    body,
			"last_message_at": at,
		}).Error
	return apperr.FromDB(err)
}
