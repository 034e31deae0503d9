package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cruxline/crux-engine/internal/apperr"
	"github.com/cruxline/crux-engine/internal/db"
)

// MatchRepository provides data access for mutual-match rows.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// canonicalPair orders a user pair so the unique index sees one key per
// unordered pair.
func canonicalPair(x, y uint64) (lo, hi uint64) {
	if x < y {
		return x, y
	}
	return y, x
}

// CreateIfAbsent inserts the match for the unordered pair {x,y} and reports
// whether this call created it. When two concurrent evaluations race, the
// unique index on (user_a, user_b) lets exactly one insert land; the loser
// re-fetches and returns the existing row as success.
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, x, y uint64) (*db.Match, bool, error) {
	if x == y {
		return nil, false, apperr.Validation("cannot match a user with themselves")
	}
	lo, hi := canonicalPair(x, y)

	match := db.Match{UserA: lo, UserB: hi}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_a"}, {Name: "user_b"}},
			DoNothing: true,
		}).
		Create(&match)
	if res.Error != nil {
		// Drivers without ON CONFLICT support surface a duplicate-key
		// error instead; treat it the same as a lost race.
		if !apperr.IsConflict(apperr.FromDB(res.Error)) {
			return nil, false, apperr.FromDB(res.Error)
		}
	} else if res.RowsAffected > 0 && match.ID != 0 {
		return &match, true, nil
	}

	existing, err := r.GetByPair(ctx, x, y)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByPair returns the match for the unordered pair {x,y}.
func (r *MatchRepository) GetByPair(ctx context.Context, x, y uint64) (*db.Match, error) {
	lo, hi := canonicalPair(x, y)
	var match db.Match
	err := r.db.WithContext(ctx).
		Where("user_a = ? AND user_b = ?", lo, hi).
		First(&match).Error
	if err != nil {
		return nil, apperr.FromDB(err)
	}
	return &match, nil
}

// GetByID returns a match by primary key.
func (r *MatchRepository) GetByID(ctx context.Context, id uint64) (*db.Match, error) {
	var match db.Match
	err := r.db.WithContext(ctx).First(&match, id).Error
	if err != nil {
		return nil, apperr.FromDB(err)
	}
	return &match, nil
}

// ListForUser returns all matches the user belongs to, newest first.
func (r *MatchRepository) ListForUser(ctx context.Context, userID uint64) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("user_a = ? OR user_b = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&matches).Error
	if err != nil {
		return nil, apperr.FromDB(err)
	}
	return matches, nil
}

// Involves reports whether the user is one side of the match.
func Involves(m *db.Match, userID uint64) bool {
	return m != nil && (m.UserA == userID || m.UserB == userID)
}
