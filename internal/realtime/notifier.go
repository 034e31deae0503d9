package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/cruxline/crux-engine/internal/db"
)

// Notifier fans out insert/update events over redis pub/sub. Delivery is
// best-effort per connection: a disconnected subscriber misses events and
// reconciles by re-fetching, never by replay.
type Notifier struct {
	client *redis.Client
	logger *slog.Logger
}

func NewNotifier(client *redis.Client, logger *slog.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

// Publish sends one event to one topic. Errors are logged and swallowed:
// a failed hint must never fail the write that produced it.
func (n *Notifier) Publish(ctx context.Context, topic string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error("failed to encode event", "topic", topic, "err", err)
		return
	}
	if err := n.client.Publish(ctx, topic, payload).Err(); err != nil {
		n.logger.Warn("failed to publish event", "topic", topic, "err", err)
	}
}

// SwipeInserted notifies the swipe's target.
func (n *Notifier) SwipeInserted(ctx context.Context, swipe *db.Swipe) {
	ev := Event{
		Table:    TableSwipes,
		Op:       OpInsert,
		ID:       swipe.ID,
		ActorID:  swipe.ActorID,
		TargetID: swipe.TargetID,
		At:       swipe.CreatedAt,
	}
	n.Publish(ctx, TopicSwipesFor(swipe.TargetID), ev)
}

// MatchCreated notifies both sides of a new match.
func (n *Notifier) MatchCreated(ctx context.Context, match *db.Match) {
	ev := Event{
		Table:    TableMatches,
		Op:       OpInsert,
		ID:       match.ID,
		ActorID:  match.UserA,
		TargetID: match.UserB,
		At:       match.CreatedAt,
	}
	n.Publish(ctx, TopicMatchesFor(match.UserA), ev)
	n.Publish(ctx, TopicMatchesFor(match.UserB), ev)
}

// MessageInserted notifies the thread's channel and the firehose.
func (n *Notifier) MessageInserted(ctx context.Context, msg *db.Message) {
	ev := Event{
		Table:    TableMessages,
		Op:       OpInsert,
		ID:       msg.ID,
		ThreadID: msg.ThreadID,
		ActorID:  msg.SenderID,
		Body:     msg.Body,
		At:       msg.CreatedAt,
	}
	n.Publish(ctx, TopicMessagesIn(msg.ThreadID), ev)
	n.Publish(ctx, TopicMessagesAll, ev)
}

// MessagesUpdated notifies status advancement (delivered/read) in a thread.
func (n *Notifier) MessagesUpdated(ctx context.Context, threadID, byUserID uint64) {
	ev := Event{
		Table:    TableMessages,
		Op:       OpUpdate,
		ThreadID: threadID,
		ActorID:  byUserID,
	}
	n.Publish(ctx, TopicMessagesIn(threadID), ev)
	n.Publish(ctx, TopicMessagesAll, ev)
}

// Subscription is a scoped handle on a set of topics. Close is the single
// release path and is safe to call more than once; cancelling the context
// passed to Subscribe closes it as well, so no exit path leaks the
// underlying pub/sub connection.
type Subscription struct {
	pubsub *redis.PubSub
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Events is the stream of decoded notifications, FIFO per source topic.
// The channel closes after Close.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close unsubscribes and releases the connection.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

// Subscribe opens a subscription on the given topics.
func (n *Notifier) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	pubsub := n.client.Subscribe(ctx, topics...)
	// force the SUBSCRIBE round-trip so a dead transport fails here,
	// not silently on the first missed event
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &Subscription{
		pubsub: pubsub,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()

	go func() {
		defer close(sub.events)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				n.logger.Warn("dropping undecodable event", "channel", msg.Channel, "err", err)
				continue
			}
			select {
			case sub.events <- ev:
			case <-sub.done:
				return
			}
		}
	}()

	return sub, nil
}
