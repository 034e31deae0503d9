package toast_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruxline/crux-engine/internal/profile"
	"github.com/cruxline/crux-engine/internal/realtime"
	"github.com/cruxline/crux-engine/internal/toast"
)

// stubLookup resolves a fixed set of display names.
type stubLookup map[uint64]string

func (s stubLookup) Profiles(_ context.Context, ids []uint64) (map[uint64]profile.Profile, error) {
	out := make(map[uint64]profile.Profile, len(ids))
	for _, id := range ids {
		if name, ok := s[id]; ok {
			out[id] = profile.Profile{UserID: id, DisplayName: name}
		}
	}
	return out, nil
}

func messageEvent(threadID, actorID uint64, body string) realtime.Event {
	return realtime.Event{
		Table:    realtime.TableMessages,
		Op:       realtime.OpInsert,
		ID:       1,
		ThreadID: threadID,
		ActorID:  actorID,
		Body:     body,
		At:       time.Now().UTC(),
	}
}

func TestDispatchResolvesSenderName(t *testing.T) {
	ctx := context.Background()
	d := toast.NewDispatcher(1, stubLookup{2: "Mina"})

	got, err := d.Dispatch(ctx, messageEvent(10, 2, "heel hook beta for the roof"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Mina", got.SenderName)
	assert.Equal(t, uint64(10), got.ThreadID)
	assert.Equal(t, "heel hook beta for the roof", got.Body)
}

func TestDispatchSuppressesOwnMessages(t *testing.T) {
	ctx := context.Background()
	d := toast.NewDispatcher(1, stubLookup{})

	got, err := d.Dispatch(ctx, messageEvent(10, 1, "my own message"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDispatchSuppressesActiveThread(t *testing.T) {
	ctx := context.Background()
	d := toast.NewDispatcher(1, stubLookup{2: "Mina"})
	d.SetActiveThread(10)

	got, err := d.Dispatch(ctx, messageEvent(10, 2, "you are already reading this"))
	require.NoError(t, err)
	assert.Nil(t, got)

	// leaving the thread lifts the suppression
	d.SetActiveThread(0)
	got, err = d.Dispatch(ctx, messageEvent(10, 2, "now you are not"))
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestDispatchIgnoresNonMessageInserts(t *testing.T) {
	ctx := context.Background()
	d := toast.NewDispatcher(1, stubLookup{})

	update := messageEvent(10, 2, "")
	update.Op = realtime.OpUpdate
	got, err := d.Dispatch(ctx, update)
	require.NoError(t, err)
	assert.Nil(t, got)

	match := realtime.Event{Table: realtime.TableMatches, Op: realtime.OpInsert, ActorID: 2}
	got, err = d.Dispatch(ctx, match)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDispatchFallsBackToUserID(t *testing.T) {
	ctx := context.Background()
	d := toast.NewDispatcher(1, stubLookup{})

	got, err := d.Dispatch(ctx, messageEvent(10, 42, "hello"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "User 42", got.SenderName)
}

func TestTruncate(t *testing.T) {
	short := "quick draw"
	assert.Equal(t, short, toast.Truncate(short, toast.BodyLimit))

	exact := strings.Repeat("a", toast.BodyLimit)
	assert.Equal(t, exact, toast.Truncate(exact, toast.BodyLimit))

	long := strings.Repeat("a", toast.BodyLimit+10)
	got := toast.Truncate(long, toast.BodyLimit)
	assert.Equal(t, strings.Repeat("a", toast.BodyLimit)+"…", got)

	// rune-aware: multibyte characters count as one
	wide := strings.Repeat("山", toast.BodyLimit+1)
	got = toast.Truncate(wide, toast.BodyLimit)
	assert.Equal(t, toast.BodyLimit+1, len([]rune(got)), "cap plus the ellipsis rune")
	assert.True(t, strings.HasSuffix(got, "…"))
}
