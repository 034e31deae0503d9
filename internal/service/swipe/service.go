package swipe

import (
	"context"

	"github.com/cruxline/crux-engine/internal/app"
	"github.com/cruxline/crux-engine/internal/db"
	"github.com/cruxline/crux-engine/internal/repository"
)

// Service records swipes and detects mutual matches.
// It contains the business logic on top of the repository layer:
// append to the swipe log, evaluate the reverse direction on every like,
// and create the match (plus its direct thread) exactly once per pair.
type Service struct {
	appCtx  *app.AppContext
	swipes  *repository.SwipeRepository
	matches *repository.MatchRepository
	threads *repository.ThreadRepository
	devices *repository.DeviceTokenRepository
}

// NewService creates a new swipe service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:  appCtx,
		swipes:  repository.NewSwipeRepository(appCtx.DB),
		matches: repository.NewMatchRepository(appCtx.DB),
		threads: repository.NewThreadRepository(appCtx.DB),
		devices: repository.NewDeviceTokenRepository(appCtx.DB),
	}
}

// Result is the outcome of one swipe: the appended log row, and the match
// when the swipe completed a mutual like. Match is nil otherwise.
type Result struct {
	Swipe *db.Swipe `json:"swipe"`
	Match *db.Match `json:"match,omitempty"`
}

// PutSwipe appends a swipe and runs match evaluation.
//
// Behavior:
//   - Validates actor != target and action ∈ {like, pass}.
//   - Appends to the swipe log (append-only; a later swipe supersedes
//     intent but never rewrites history).
//   - A pass never triggers evaluation, even if the target has liked the
//     actor.
//   - On a like, checks the target's most recent swipe back; if it is a
//     like, creates the match. Creation is idempotent under races: a
//     losing concurrent attempt returns the existing row as success.
//   - On match creation, eagerly materializes the direct thread so the
//     first message can never race thread creation, then notifies both
//     users and hands a push notification off to the gateway.
func (s *Service) PutSwipe(ctx context.Context, actorID, targetID uint64, action string) (*Result, error) {
	log := s.appCtx.Logger
	log.Debug("PutSwipe called", "actor", actorID, "target", targetID, "action", action)

	swipe, err := s.swipes.Append(ctx, actorID, targetID, action)
	if err != nil {
		return nil, err
	}
	s.appCtx.Notifier.SwipeInserted(ctx, swipe)

	if action != db.SwipeActionLike {
		return &Result{Swipe: swipe}, nil
	}

	match, err := s.evaluate(ctx, actorID, targetID)
	if err != nil {
		// the swipe is durably recorded; surface the evaluation failure
		return nil, err
	}

	return &Result{Swipe: swipe, Match: match}, nil
}

// evaluate checks whether a mutual like now exists for (actorID, targetID)
// and creates the match exactly once. Returns nil when the target's
// current intent is not a like.
func (s *Service) evaluate(ctx context.Context, actorID, targetID uint64) (*db.Match, error) {
	reverse, err := s.swipes.LatestFor(ctx, targetID, actorID)
	if err != nil {
		return nil, err
	}
	if reverse == nil || reverse.Action != db.SwipeActionLike {
		return nil, nil
	}

	match, created, err := s.matches.CreateIfAbsent(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}

	// Eager, idempotent: runs on the winning and the losing side of a
	// race alike, so the thread exists before anyone can type.
	if _, err := s.threads.EnsureDirect(ctx, match); err != nil {
		return nil, err
	}

	if created {
		s.appCtx.Logger.Info("match created", "match_id", match.ID, "user_a", match.UserA, "user_b", match.UserB)
		s.appCtx.Notifier.MatchCreated(ctx, match)
		s.pushMatchNotification(ctx, match)
	}

	return match, nil
}

// EvaluatePair re-runs match detection for a pair without appending a new
// swipe. Safe to call any number of times; it never creates a second row.
func (s *Service) EvaluatePair(ctx context.Context, actorID, targetID uint64) (*db.Match, error) {
	forward, err := s.swipes.LatestFor(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	if forward == nil || forward.Action != db.SwipeActionLike {
		return nil, nil
	}
	return s.evaluate(ctx, actorID, targetID)
}

// ListMatches returns the user's matches, newest first.
func (s *Service) ListMatches(ctx context.Context, userID uint64) ([]db.Match, error) {
	return s.matches.ListForUser(ctx, userID)
}

// pushMatchNotification hands the new-match push to the external gateway.
// Failures are logged, never propagated: push is a courtesy, the match is
// already durable.
func (s *Service) pushMatchNotification(ctx context.Context, match *db.Match) {
	names, err := s.appCtx.Profiles.Profiles(ctx, []uint64{match.UserA, match.UserB})
	if err != nil {
		s.appCtx.Logger.Warn("profile lookup for push failed", "match_id", match.ID, "err", err)
		names = nil
	}

	notify := func(userID, otherID uint64) {
		tokens, err := s.devices.ActiveTokensFor(ctx, userID)
		if err != nil || len(tokens) == 0 {
			return
		}
		body := "You have a new climbing partner!"
		if p, ok := names[otherID]; ok {
			body = "You and " + p.DisplayName + " matched!"
		}
		if err := s.appCtx.Push.Send(ctx, tokens, "It's a match", body); err != nil {
			s.appCtx.Logger.Warn("push hand-off failed", "user", userID, "err", err)
		}
	}

	notify(match.UserA, match.UserB)
	notify(match.UserB, match.UserA)
}
