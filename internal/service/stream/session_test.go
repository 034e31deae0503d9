package stream_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cruxline/crux-engine/internal/app"
	"github.com/cruxline/crux-engine/internal/cache"
	"github.com/cruxline/crux-engine/internal/config"
	"github.com/cruxline/crux-engine/internal/db"
	"github.com/cruxline/crux-engine/internal/profile"
	"github.com/cruxline/crux-engine/internal/push"
	"github.com/cruxline/crux-engine/internal/realtime"
	"github.com/cruxline/crux-engine/internal/repository"
	"github.com/cruxline/crux-engine/internal/server"
	"github.com/cruxline/crux-engine/internal/service/chat"
	"github.com/cruxline/crux-engine/internal/service/stream"
)

type wsFixture struct {
	appCtx  *app.AppContext
	chatSvc *chat.Service
	thread  *db.Thread
	baseURL string
}

// wsFrame mirrors the session's output envelope for decoding in tests.
type wsFrame struct {
	Type  string          `json:"type"`
	Event *realtime.Event `json:"event"`
	Toast json.RawMessage `json:"toast"`
}

// setupWS serves the websocket endpoint over httptest with users 1 and 2
// matched into a direct thread. User 3 is a stranger to it.
func setupWS(t *testing.T) *wsFixture {
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
	cfg.Realtime.PollInterval = 100 * time.Millisecond
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

	ctx := context.Background()
	match, _, err := repository.NewMatchRepository(dbase).CreateIfAbsent(ctx, 1, 2)
	require.NoError(t, err)
	thread, err := repository.NewThreadRepository(dbase).EnsureDirect(ctx, match)
	require.NoError(t, err)

	srv := httptest.NewServer(server.NewRouter(cfg, stream.NewRegistrar(appCtx)))
	t.Cleanup(srv.Close)

	return &wsFixture{
		appCtx:  appCtx,
		chatSvc: chat.NewService(appCtx),
		thread:  thread,
		baseURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func dialWS(t *testing.T, f *wsFixture, userID uint64) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s/v1/ws?user_id=%d", f.baseURL, userID), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// awaitUnreadFrame reads until the session's first unread snapshot. The
// session subscribes before it starts the snapshot sources, so once this
// frame arrives the event feed is live.
func awaitUnreadFrame(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err, "no unread frame before deadline")
		var fr wsFrame
		require.NoError(t, json.Unmarshal(payload, &fr))
		if fr.Type == "unread" {
			return
		}
	}
}

func TestParticipantReceivesMessageEvent(t *testing.T) {
	f := setupWS(t)
	conn := dialWS(t, f, 2)
	awaitUnreadFrame(t, conn)

	_, err := f.chatSvc.SendMessage(context.Background(), f.thread.ID, 1, "meet at the overhang")
	require.NoError(t, err)

	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err, "participant never received the message event")
		var fr wsFrame
		require.NoError(t, json.Unmarshal(payload, &fr))
		if fr.Type == "event" && fr.Event != nil && fr.Event.Table == realtime.TableMessages {
			assert.Equal(t, f.thread.ID, fr.Event.ThreadID)
			assert.Equal(t, "meet at the overhang", fr.Event.Body)
			return
		}
	}
}

func TestNonParticipantNeverSeesMessageTraffic(t *testing.T) {
	f := setupWS(t)
	outsider := dialWS(t, f, 3)
	awaitUnreadFrame(t, outsider)

	_, err := f.chatSvc.SendMessage(context.Background(), f.thread.ID, 1, "beta for the two of us")
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		_ = outsider.SetReadDeadline(deadline)
		_, payload, err := outsider.ReadMessage()
		if err != nil {
			// deadline hit with nothing delivered: the thread stayed private
			return
		}
		var fr wsFrame
		require.NoError(t, json.Unmarshal(payload, &fr))
		switch fr.Type {
		case "event":
			if fr.Event != nil && fr.Event.Table == realtime.TableMessages {
				t.Fatalf("stranger received message traffic: %s", payload)
			}
		case "toast":
			t.Fatalf("stranger received a toast: %s", payload)
		}
	}
}

func TestGroupParticipantStillReceivesEvents(t *testing.T) {
	f := setupWS(t)
	ctx := context.Background()

	gym, err := f.chatSvc.EnsureGymThread(ctx, 1, "general", 3)
	require.NoError(t, err)
	_, err = f.chatSvc.EnsureGymThread(ctx, 1, "general", 1)
	require.NoError(t, err)

	conn := dialWS(t, f, 3)
	awaitUnreadFrame(t, conn)

	_, err = f.chatSvc.SendMessage(ctx, gym.ID, 1, "new routes up on the slab")
	require.NoError(t, err)

	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err, "gym member never received the message event")
		var fr wsFrame
		require.NoError(t, json.Unmarshal(payload, &fr))
		if fr.Type == "event" && fr.Event != nil && fr.Event.Table == realtime.TableMessages {
			assert.Equal(t, gym.ID, fr.Event.ThreadID)
			return
		}
	}
}
