// Package toast turns qualifying message events into transient
// notifications. It is presentation glue: the suppression rules depend on
// the same "which thread is the viewer in" context the unread tracker
// tracks, which is why it lives beside the engine core.
package toast

import (
	"context"
	"strconv"
	"sync"

	"github.com/cruxline/crux-engine/internal/profile"
	"github.com/cruxline/crux-engine/internal/realtime"
)

// BodyLimit is the character cap before the body is elided.
const BodyLimit = 50

// Toast is one transient user-facing notification.
type Toast struct {
	ThreadID   uint64 `json:"thread_id"`
	SenderID   uint64 `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Body       string `json:"body"`
}

// Dispatcher filters message-insert events for one viewer session.
// Suppression: events authored by the viewer, events in the thread the
// viewer is currently looking at, and anything that is not a message
// insert.
type Dispatcher struct {
	viewerID uint64
	profiles profile.Lookup

	mu           sync.Mutex
	activeThread uint64
}

func NewDispatcher(viewerID uint64, profiles profile.Lookup) *Dispatcher {
	return &Dispatcher{viewerID: viewerID, profiles: profiles}
}

// SetActiveThread records the thread the viewer is currently inside.
// Zero clears it.
func (d *Dispatcher) SetActiveThread(threadID uint64) {
	d.mu.Lock()
	d.activeThread = threadID
	d.mu.Unlock()
}

// ActiveThread returns the thread the viewer is currently inside, 0 if none.
func (d *Dispatcher) ActiveThread() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeThread
}

// Dispatch evaluates one event. It returns nil when the event is
// suppressed.
func (d *Dispatcher) Dispatch(ctx context.Context, ev realtime.Event) (*Toast, error) {
	if ev.Table != realtime.TableMessages || ev.Op != realtime.OpInsert {
		return nil, nil
	}
	if ev.ActorID == d.viewerID {
		return nil, nil
	}
	if d.ActiveThread() == ev.ThreadID {
		return nil, nil
	}

	name := displayName(ctx, d.profiles, ev.ActorID)

	return &Toast{
		ThreadID:   ev.ThreadID,
		SenderID:   ev.ActorID,
		SenderName: name,
		Body:       Truncate(ev.Body, BodyLimit),
	}, nil
}

func displayName(ctx context.Context, profiles profile.Lookup, userID uint64) string {
	if profiles != nil {
		if resolved, err := profiles.Profiles(ctx, []uint64{userID}); err == nil {
			if p, ok := resolved[userID]; ok && p.DisplayName != "" {
				return p.DisplayName
			}
		}
	}
	// degrade to the raw id rather than dropping the toast
	return "User " + strconv.FormatUint(userID, 10)
}

// Truncate caps s at limit runes, appending an ellipsis when elided.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
