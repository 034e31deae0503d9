package unread_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruxline/crux-engine/internal/realtime"
	"github.com/cruxline/crux-engine/internal/unread"
)

func waitSnapshot(t *testing.T, ch <-chan unread.Snapshot) unread.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "snapshot channel closed early")
		return snap
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return unread.Snapshot{}
	}
}

func sameState(t *testing.T, a, b unread.Snapshot) {
	t.Helper()
	assert.Equal(t, a.ThreadUnread, b.ThreadUnread)
	assert.Equal(t, a.ChatsUnread, b.ChatsUnread)
	assert.Equal(t, a.CrewUnread, b.CrewUnread)
}

// The stream path and the poll path must converge to identical unread
// state on the same fixture data; the stream is a latency optimization,
// never a different answer.
func TestStreamAndPollConverge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := setupFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := realtime.NewNotifier(f.cache.Client, logger)

	streamSrc := unread.NewStreamSource(f.tracker, 2, logger)
	pollSrc := unread.NewPollSource(f.tracker, 2, 50*time.Millisecond, logger)
	go streamSrc.Run(ctx)
	go pollSrc.Run(ctx)

	// one subscription feeds the stream source its hints, the same wiring
	// the websocket session uses
	sub, err := notifier.Subscribe(ctx, realtime.TopicMessagesAll, realtime.TopicMatchesFor(2))
	require.NoError(t, err)
	defer sub.Close()
	go func() {
		for range sub.Events() {
			streamSrc.Hint()
		}
	}()

	// both emit an initial snapshot of the empty fixture
	streamSnap := waitSnapshot(t, streamSrc.Snapshots())
	pollSnap := waitSnapshot(t, pollSrc.Snapshots())
	sameState(t, streamSnap, pollSnap)
	assert.False(t, streamSnap.ChatsUnread)

	// a message lands; the stream hint and the next poll tick must agree
	receiver := uint64(2)
	msg, err := f.messages.Append(ctx, f.directThread, 1, &receiver, "heading to the gym")
	require.NoError(t, err)
	notifier.MessageInserted(ctx, msg)

	streamSnap = waitSnapshot(t, streamSrc.Snapshots())
	assert.True(t, streamSnap.ChatsUnread)
	assert.True(t, streamSnap.ThreadUnread[f.directThread])

	deadline := time.After(3 * time.Second)
	for {
		select {
		case snap := <-pollSrc.Snapshots():
			if snap.ChatsUnread {
				sameState(t, streamSnap, snap)
				return
			}
		case <-deadline:
			t.Fatal("poll path never converged to the stream state")
		}
	}
}

// With no stream at all, polling alone must still reach the same state a
// direct recompute produces.
func TestPollAloneMatchesDirectRecompute(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := setupFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	receiver := uint64(2)
	_, err := f.messages.Append(ctx, f.directThread, 1, &receiver, "offline message")
	require.NoError(t, err)

	pollSrc := unread.NewPollSource(f.tracker, 2, 50*time.Millisecond, logger)
	go pollSrc.Run(ctx)

	polled := waitSnapshot(t, pollSrc.Snapshots())

	direct, err := f.tracker.Snapshot(ctx, 2)
	require.NoError(t, err)
	sameState(t, direct, polled)
	assert.True(t, polled.ChatsUnread)
}

// Late snapshots with an older issue-time sequence must not replace
// fresher state.
func TestSequencedSnapshotsLastWriteWins(t *testing.T) {
	older := unread.Snapshot{Seq: 10, ChatsUnread: true}
	newer := unread.Snapshot{Seq: 20, ChatsUnread: false}

	var lastSeq int64
	apply := func(s unread.Snapshot) bool {
		if s.Seq > lastSeq {
			lastSeq = s.Seq
			return true
		}
		return false
	}

	assert.True(t, apply(newer))
	assert.False(t, apply(older), "stale fetch result must be discarded")
}
