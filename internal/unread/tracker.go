package unread

import (
	"context"
	"log/slog"
	"time"

	"github.com/cruxline/crux-engine/internal/cache"
	"github.com/cruxline/crux-engine/internal/db"
	"github.com/cruxline/crux-engine/internal/repository"
)

// Snapshot is the unread state for one viewer at one instant. Seq is the
// fetch issue time in nanoseconds; consumers apply snapshots last-write-wins
// by Seq, so a slow fetch that returns after a newer one is discarded.
type Snapshot struct {
	ViewerID     uint64          `json:"viewer_id"`
	ThreadUnread map[uint64]bool `json:"thread_unread"`
	ChatsUnread  bool            `json:"chats_unread"`
	CrewUnread   bool            `json:"crew_unread"`
	Seq          int64           `json:"seq"`
	TakenAt      time.Time       `json:"taken_at"`
}

// Tracker recomputes unread state from the stores. Both delivery paths
// (stream hint and poll tick) run through Snapshot, so they converge on
// identical results given identical data.
type Tracker struct {
	threads  *repository.ThreadRepository
	messages *repository.MessageRepository
	cache    *cache.RedisCache
	logger   *slog.Logger
}

func NewTracker(threads *repository.ThreadRepository, messages *repository.MessageRepository, redisCache *cache.RedisCache, logger *slog.Logger) *Tracker {
	return &Tracker{
		threads:  threads,
		messages: messages,
		cache:    redisCache,
		logger:   logger,
	}
}

// Snapshot derives the viewer's full unread state: one boolean per thread
// plus the chats (direct+gym) and crew aggregates shown in navigation.
// The aggregates are written through to the redis cache with a fresh TTL.
func (t *Tracker) Snapshot(ctx context.Context, viewerID uint64) (Snapshot, error) {
	seq := time.Now().UnixNano()

	chatThreads, err := t.threads.ListForUser(ctx, viewerID)
	if err != nil {
		return Snapshot{}, err
	}
	crewThreads, err := t.threads.ListCrewForUser(ctx, viewerID)
	if err != nil {
		return Snapshot{}, err
	}

	all := make([]db.Thread, 0, len(chatThreads)+len(crewThreads))
	all = append(all, chatThreads...)
	all = append(all, crewThreads...)

	ids := make([]uint64, len(all))
	for i, th := range all {
		ids[i] = th.ID
	}
	latest, err := t.messages.LatestPerThread(ctx, ids)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		ViewerID:     viewerID,
		ThreadUnread: make(map[uint64]bool, len(all)),
		Seq:          seq,
		TakenAt:      time.Now(),
	}
	for _, th := range all {
		msg, hasAny := latest[th.ID]
		direct := th.Type == db.ThreadTypeDirect
		isUnread := IsThreadUnread(msg, viewerID, direct, hasAny)
		snap.ThreadUnread[th.ID] = isUnread
		if isUnread {
			if th.Type == db.ThreadTypeCrew {
				snap.CrewUnread = true
			} else {
				snap.ChatsUnread = true
			}
		}
	}

	if t.cache != nil {
		if err := t.cache.SetUnreadAggregates(ctx, viewerID, snap.ChatsUnread, snap.CrewUnread); err != nil {
			t.logger.Warn("failed to cache unread aggregates", "viewer", viewerID, "err", err)
		}
	}

	return snap, nil
}

// Aggregates returns the chats/crew unread booleans, cache-first with the
// full recompute as fallback on a miss.
func (t *Tracker) Aggregates(ctx context.Context, viewerID uint64) (chats, crew bool, err error) {
	if t.cache != nil {
		chats, crew, ok, cacheErr := t.cache.GetUnreadAggregates(ctx, viewerID)
		if cacheErr != nil {
			t.logger.Warn("unread cache read failed", "viewer", viewerID, "err", cacheErr)
		} else if ok {
			return chats, crew, nil
		}
	}

	snap, err := t.Snapshot(ctx, viewerID)
	if err != nil {
		return false, false, err
	}
	return snap.ChatsUnread, snap.CrewUnread, nil
}
