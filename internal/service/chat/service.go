package chat

import (
	"context"
	"strings"

	"github.com/cruxline/crux-engine/internal/app"
	"github.com/cruxline/crux-engine/internal/apperr"
	"github.com/cruxline/crux-engine/internal/db"
	"github.com/cruxline/crux-engine/internal/repository"
	"github.com/cruxline/crux-engine/internal/unread"
)

// GymThreadTitles is the fixed allow-list of gym group threads. Titles
// outside it are rejected, which is what keeps gym thread creation from
// proliferating one thread per typo.
var GymThreadTitles = []string{"general", "beta center", "routesetting"}

const defaultPageSize = 50

// Service resolves threads and moves messages. It owns participant
// authorization: every read and write checks membership before touching
// the message stream.
type Service struct {
	appCtx   *app.AppContext
	threads  *repository.ThreadRepository
	matches  *repository.MatchRepository
	messages *repository.MessageRepository
	tracker  *unread.Tracker
}

// NewService creates a new chat service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	threads := repository.NewThreadRepository(appCtx.DB)
	messages := repository.NewMessageRepository(appCtx.DB)
	return &Service{
		appCtx:   appCtx,
		threads:  threads,
		matches:  repository.NewMatchRepository(appCtx.DB),
		messages: messages,
		tracker:  unread.NewTracker(threads, messages, appCtx.RedisCache, appCtx.Logger),
	}
}

// Tracker exposes the unread tracker sharing this service's repositories.
func (s *Service) Tracker() *unread.Tracker {
	return s.tracker
}

// EnsureDirectThread returns the 1:1 thread for a match, creating it on
// first need. Only the matched users may resolve it.
func (s *Service) EnsureDirectThread(ctx context.Context, matchID, userID uint64) (*db.Thread, error) {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !repository.Involves(match, userID) {
		return nil, apperr.Authorization("user %d is not part of match %d", userID, matchID)
	}
	return s.threads.EnsureDirect(ctx, match)
}

// EnsureGymThread returns the gym group thread for (gymID, title),
// creating it on first need and enrolling the caller. The title must be
// one of GymThreadTitles after canonicalization (trimmed, lower-cased).
func (s *Service) EnsureGymThread(ctx context.Context, gymID uint64, title string, userID uint64) (*db.Thread, error) {
	canonical := strings.ToLower(strings.TrimSpace(title))
	if !allowedGymTitle(canonical) {
		return nil, apperr.Validation("gym thread title %q is not allowed", title)
	}
	if gymID == 0 {
		return nil, apperr.Validation("gym_id is required")
	}

	thread, err := s.threads.EnsureGym(ctx, gymID, canonical)
	if err != nil {
		return nil, err
	}
	if err := s.threads.AddParticipant(ctx, thread.ID, userID); err != nil {
		return nil, err
	}
	return thread, nil
}

// EnsureCrewThread returns the crew's thread, creating it on first need
// and enrolling the caller.
func (s *Service) EnsureCrewThread(ctx context.Context, crewID uint64, title string, userID uint64) (*db.Thread, error) {
	if crewID == 0 {
		return nil, apperr.Validation("crew_id is required")
	}
	if strings.TrimSpace(title) == "" {
		title = "Crew"
	}

	thread, err := s.threads.EnsureCrew(ctx, crewID, title)
	if err != nil {
		return nil, err
	}
	if err := s.threads.AddParticipant(ctx, thread.ID, userID); err != nil {
		return nil, err
	}
	return thread, nil
}

// JoinThread enrolls a user into a gym or crew thread. Direct threads have
// fixed membership.
func (s *Service) JoinThread(ctx context.Context, threadID, userID uint64) error {
	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		return err
	}
	if thread.Type == db.ThreadTypeDirect {
		return apperr.Validation("direct threads have fixed membership")
	}
	return s.threads.AddParticipant(ctx, threadID, userID)
}

// ListThreadsFor returns the user's chat list: direct and gym threads,
// each exactly once. Crew threads surface only through ListCrewThreadsFor.
func (s *Service) ListThreadsFor(ctx context.Context, userID uint64) ([]db.Thread, error) {
	return s.threads.ListForUser(ctx, userID)
}

// ListCrewThreadsFor returns the user's crew threads for the crew view.
func (s *Service) ListCrewThreadsFor(ctx context.Context, userID uint64) ([]db.Thread, error) {
	return s.threads.ListCrewForUser(ctx, userID)
}

// SendMessage appends a message to a thread.
//
// Fails with AuthorizationError when the sender is not a participant and
// ValidationError on an empty body. On success the parent thread's
// last-message cache is refreshed and subscribers are notified. Not safe
// to blind-retry: a retry without a client idempotency key would duplicate
// a visible message.
func (s *Service) SendMessage(ctx context.Context, threadID, senderID uint64, body string) (*db.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Validation("message body must not be empty")
	}

	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}

	ok, err := s.threads.IsParticipant(ctx, thread, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Authorization("user %d is not a participant of thread %d", senderID, threadID)
	}

	var receiverID *uint64
	if thread.Type == db.ThreadTypeDirect {
		other := thread.OtherDirectUser(senderID)
		receiverID = &other
	}

	msg, err := s.messages.Append(ctx, threadID, senderID, receiverID, body)
	if err != nil {
		return nil, err
	}

	if err := s.threads.UpdateLastMessage(ctx, threadID, msg.Body, msg.CreatedAt); err != nil {
		s.appCtx.Logger.Warn("failed to update thread cache", "thread", threadID, "err", err)
	}

	// receivers' cached aggregates just went stale
	s.invalidateUnreadFor(ctx, thread, senderID)
	s.appCtx.Notifier.MessageInserted(ctx, msg)

	return msg, nil
}

// ListMessages returns a thread's messages oldest first, with cursor
// pagination. Fails with AuthorizationError for non-participants.
func (s *Service) ListMessages(ctx context.Context, threadID, viewerID uint64, paginationToken *string, limit int) ([]db.Message, *string, error) {
	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		return nil, nil, err
	}
	ok, err := s.threads.IsParticipant(ctx, thread, viewerID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, apperr.Authorization("user %d is not a participant of thread %d", viewerID, threadID)
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	return s.messages.List(ctx, threadID, paginationToken, limit)
}

// MarkThreadRead advances every message not sent by the reader to read.
// The transition is monotonic, so concurrent calls converge.
func (s *Service) MarkThreadRead(ctx context.Context, threadID, readerID uint64) error {
	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		return err
	}
	ok, err := s.threads.IsParticipant(ctx, thread, readerID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Authorization("user %d is not a participant of thread %d", readerID, threadID)
	}

	changed, err := s.messages.MarkRead(ctx, threadID, readerID)
	if err != nil {
		return err
	}
	if changed > 0 {
		if s.appCtx.RedisCache != nil {
			_ = s.appCtx.RedisCache.InvalidateUnread(ctx, readerID)
		}
		s.appCtx.Notifier.MessagesUpdated(ctx, threadID, readerID)
	}
	return nil
}

// MarkThreadDelivered advances sent messages to delivered on behalf of a
// recipient device. Driven by the realtime session when a client receives.
func (s *Service) MarkThreadDelivered(ctx context.Context, threadID, userID uint64) error {
	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		return err
	}
	ok, err := s.threads.IsParticipant(ctx, thread, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Authorization("user %d is not a participant of thread %d", userID, threadID)
	}

	changed, err := s.messages.MarkDelivered(ctx, threadID, userID)
	if err != nil {
		return err
	}
	if changed > 0 {
		s.appCtx.Notifier.MessagesUpdated(ctx, threadID, userID)
	}
	return nil
}

// Unread returns the viewer's per-thread booleans and navigation
// aggregates in one shot.
func (s *Service) Unread(ctx context.Context, viewerID uint64) (unread.Snapshot, error) {
	return s.tracker.Snapshot(ctx, viewerID)
}

// UnreadBadges returns just the chats/crew navigation booleans, served
// cache-first. Cheaper than Unread when a client only renders tab badges.
func (s *Service) UnreadBadges(ctx context.Context, viewerID uint64) (chats, crew bool, err error) {
	return s.tracker.Aggregates(ctx, viewerID)
}

func (s *Service) invalidateUnreadFor(ctx context.Context, thread *db.Thread, senderID uint64) {
	if s.appCtx.RedisCache == nil {
		return
	}
	participants, err := s.threads.ListParticipants(ctx, thread)
	if err != nil {
		return
	}
	for _, id := range participants {
		if id != senderID {
			_ = s.appCtx.RedisCache.InvalidateUnread(ctx, id)
		}
	}
}

func allowedGymTitle(title string) bool {
	for _, allowed := range GymThreadTitles {
		if title == allowed {
			return true
		}
	}
	return false
}
