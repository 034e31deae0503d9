package swipe_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cruxline/crux-engine/internal/app"
	"github.com/cruxline/crux-engine/internal/apperr"
	"github.com/cruxline/crux-engine/internal/cache"
	"github.com/cruxline/crux-engine/internal/config"
	"github.com/cruxline/crux-engine/internal/db"
	"github.com/cruxline/crux-engine/internal/profile"
	"github.com/cruxline/crux-engine/internal/push"
	"github.com/cruxline/crux-engine/internal/realtime"
	"github.com/cruxline/crux-engine/internal/repository"
	"github.com/cruxline/crux-engine/internal/service/swipe"
)

func setupService(t *testing.T) (*swipe.Service, *app.AppContext) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(dbase))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	redisCache := cache.NewRedisCache(cfg)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := app.New(
		cfg,
		dbase,
		redisCache,
		realtime.NewNotifier(redisCache.Client, logger),
		profile.NewDBLookup(dbase),
		push.NewLogGateway(logger),
		logger,
	)
	return swipe.NewService(appCtx), appCtx
}

func TestMutualLikeCreatesExactlyOneMatch(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	res, err := svc.PutSwipe(ctx, 1, 2, db.SwipeActionLike)
	require.NoError(t, err)
	assert.Nil(t, res.Match, "one-directional like must not match")

	res, err = svc.PutSwipe(ctx, 2, 1, db.SwipeActionLike)
	require.NoError(t, err)
	require.NotNil(t, res.Match, "reciprocal like must complete the match")
	assert.Equal(t, uint64(1), res.Match.UserA)
	assert.Equal(t, uint64(2), res.Match.UserB)

	var count int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRepeatedLikesNeverDuplicateMatch(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	_, err := svc.PutSwipe(ctx, 1, 2, db.SwipeActionLike)
	require.NoError(t, err)
	_, err = svc.PutSwipe(ctx, 2, 1, db.SwipeActionLike)
	require.NoError(t, err)

	// pile on more likes from both sides
	for i := 0; i < 3; i++ {
		_, err = svc.PutSwipe(ctx, 1, 2, db.SwipeActionLike)
		require.NoError(t, err)
		_, err = svc.PutSwipe(ctx, 2, 1, db.SwipeActionLike)
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "match creation must stay idempotent")
}

func TestEvaluatePairBothDirectionsSameMatch(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.PutSwipe(ctx, 1, 2, db.SwipeActionLike)
	require.NoError(t, err)
	_, err = svc.PutSwipe(ctx, 2, 1, db.SwipeActionLike)
	require.NoError(t, err)

	forward, err := svc.EvaluatePair(ctx, 1, 2)
	require.NoError(t, err)
	reverse, err := svc.EvaluatePair(ctx, 2, 1)
	require.NoError(t, err)

	require.NotNil(t, forward)
	require.NotNil(t, reverse)
	assert.Equal(t, forward.ID, reverse.ID)
}

func TestPassNeverMatches(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	_, err := svc.PutSwipe(ctx, 2, 1, db.SwipeActionLike)
	require.NoError(t, err)

	res, err := svc.PutSwipe(ctx, 1, 2, db.SwipeActionPass)
	require.NoError(t, err)
	assert.Nil(t, res.Match, "a pass must not trigger evaluation")

	var count int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestLatestSwipeWins(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	// 2 liked 1, but then changed their mind
	_, err := svc.PutSwipe(ctx, 2, 1, db.SwipeActionLike)
	require.NoError(t, err)
	older := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)
	require.NoError(t, appCtx.DB.Model(&db.Swipe{}).
		Where("actor_id = ? AND target_id = ?", 2, 1).
		Update("created_at", older).Error)
	_, err = svc.PutSwipe(ctx, 2, 1, db.SwipeActionPass)
	require.NoError(t, err)

	res, err := svc.PutSwipe(ctx, 1, 2, db.SwipeActionLike)
	require.NoError(t, err)
	assert.Nil(t, res.Match, "only the target's latest swipe counts")
}

func TestSelfSwipeRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.PutSwipe(ctx, 1, 1, db.SwipeActionLike)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestMatchEagerlyCreatesDirectThread(t *testing.T) {
	ctx := context.Background()
	svc, appCtx := setupService(t)

	_, err := svc.PutSwipe(ctx, 1, 2, db.SwipeActionLike)
	require.NoError(t, err)
	res, err := svc.PutSwipe(ctx, 2, 1, db.SwipeActionLike)
	require.NoError(t, err)
	require.NotNil(t, res.Match)

	threads := repository.NewThreadRepository(appCtx.DB)
	list, err := threads.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, db.ThreadTypeDirect, list[0].Type)
	require.NotNil(t, list[0].MatchID)
	assert.Equal(t, res.Match.ID, *list[0].MatchID)
}

func TestListMatchesShowsBothSides(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.PutSwipe(ctx, 1, 2, db.SwipeActionLike)
	require.NoError(t, err)
	_, err = svc.PutSwipe(ctx, 2, 1, db.SwipeActionLike)
	require.NoError(t, err)

	for _, userID := range []uint64{1, 2} {
		matches, err := svc.ListMatches(ctx, userID)
		require.NoError(t, err)
		require.Len(t, matches, 1)
	}
}
