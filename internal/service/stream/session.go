package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cruxline/crux-engine/internal/app"
	"github.com/cruxline/crux-engine/internal/realtime"
	"github.com/cruxline/crux-engine/internal/repository"
	"github.com/cruxline/crux-engine/internal/toast"
	"github.com/cruxline/crux-engine/internal/unread"
)

const (
	pingInterval = 30 * time.Second
	readTimeout  = 90 * time.Second
	writeTimeout = 5 * time.Second
)

// frame is the envelope for everything the session writes to the client.
type frame struct {
	Type     string          `json:"type"` // "event" | "unread" | "toast"
	Event    *realtime.Event `json:"event,omitempty"`
	Unread   *unread.Snapshot `json:"unread,omitempty"`
	Toast    *toast.Toast    `json:"toast,omitempty"`
}

// clientMessage is what the client may send back: which thread it is
// currently viewing (0 clears), and delivery acks.
type clientMessage struct {
	Type     string `json:"type"` // "viewing" | "delivered"
	ThreadID uint64 `json:"thread_id"`
}

// session owns one websocket connection: a raw event feed for the client,
// the stream- and poll-backed unread sources racing to the same state, and
// the toast dispatcher with its active-thread suppression.
type session struct {
	appCtx   *app.AppContext
	viewerID uint64
	conn     *websocket.Conn
	threads  *repository.ThreadRepository
	tracker  *unread.Tracker
	toasts   *toast.Dispatcher

	markDelivered func(ctx context.Context, threadID, userID uint64) error
}

// allowedEvent reports whether an event may be written to this viewer.
// Message traffic arrives on a shared firehose channel, so membership is
// checked per event before anything (body included) leaves the server.
// Swipe and match events arrive on viewer-scoped topics and pass through.
func (s *session) allowedEvent(ctx context.Context, ev realtime.Event) bool {
	if ev.Table != realtime.TableMessages {
		return true
	}
	thread, err := s.threads.GetByID(ctx, ev.ThreadID)
	if err != nil {
		return false
	}
	ok, err := s.threads.IsParticipant(ctx, thread, s.viewerID)
	return err == nil && ok
}

func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := s.appCtx.Logger.With("viewer", s.viewerID)

	sub, err := s.appCtx.Notifier.Subscribe(ctx,
		realtime.TopicSwipesFor(s.viewerID),
		realtime.TopicMatchesFor(s.viewerID),
		realtime.TopicMessagesAll,
	)
	if err != nil {
		log.Warn("realtime subscribe failed, session falls back to polling only", "err", err)
	} else {
		defer sub.Close()
	}

	streamSrc := unread.NewStreamSource(s.tracker, s.viewerID, s.appCtx.Logger)
	pollSrc := unread.NewPollSource(s.tracker, s.viewerID, s.appCtx.Config.Realtime.PollInterval, s.appCtx.Logger)
	go func() {
		if err := streamSrc.Run(ctx); err != nil && ctx.Err() == nil {
			log.Warn("stream source stopped", "err", err)
		}
	}()
	go func() {
		if err := pollSrc.Run(ctx); err != nil && ctx.Err() == nil {
			log.Warn("poll source stopped", "err", err)
		}
	}()

	go s.readLoop(ctx, cancel)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	var events <-chan realtime.Event
	if sub != nil {
		events = sub.Events()
	}

	// Both sources emit issue-time sequenced snapshots; the newer Seq wins
	// no matter which path delivered first.
	var lastSeq int64

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// every event is a recompute hint; Snapshot filters by
			// membership, so over-hinting is safe and under-hinting is not
			streamSrc.Hint()
			if !s.allowedEvent(ctx, ev) {
				continue
			}
			if err := s.write(frame{Type: "event", Event: &ev}); err != nil {
				return
			}
			if tst, err := s.toasts.Dispatch(ctx, ev); err == nil && tst != nil {
				if err := s.write(frame{Type: "toast", Toast: tst}); err != nil {
					return
				}
			}

		case snap, ok := <-streamSrc.Snapshots():
			if !ok {
				continue
			}
			if snap.Seq > lastSeq {
				lastSeq = snap.Seq
				if err := s.write(frame{Type: "unread", Unread: &snap}); err != nil {
					return
				}
			}

		case snap, ok := <-pollSrc.Snapshots():
			if !ok {
				continue
			}
			if snap.Seq > lastSeq {
				lastSeq = snap.Seq
				if err := s.write(frame{Type: "unread", Unread: &snap}); err != nil {
					return
				}
			}

		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (s *session) write(f frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// readLoop consumes client frames and keepalive pongs. Exiting cancels the
// session, which is the single cleanup path for all subscriptions.
func (s *session) readLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()

	_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "viewing":
			s.toasts.SetActiveThread(msg.ThreadID)
		case "delivered":
			if msg.ThreadID != 0 && s.markDelivered != nil {
				if err := s.markDelivered(ctx, msg.ThreadID, s.viewerID); err != nil {
					s.appCtx.Logger.Debug("delivered ack failed", "thread", msg.ThreadID, "err", err)
				}
			}
		}
	}
}
