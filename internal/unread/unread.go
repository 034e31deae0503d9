// Package unread derives per-thread and aggregate unread indicators.
//
// The predicates here are the single source of truth: the stream-driven
// recompute and the polling fallback both call the same functions on the
// same rows, so the two delivery paths cannot disagree about what counts
// as unread.
package unread

import (
	"github.com/cruxline/crux-engine/internal/db"
)

// IsMessageUnread reports whether one message is unread from the viewer's
// perspective.
//
// Rules:
//   - a message the viewer sent is never unread
//   - direct threads: unread only when the viewer is the receiver and the
//     status has not reached read
//   - group threads (gym/crew) have no per-recipient receiver; any message
//     not authored by the viewer counts until a read receipt lands
func IsMessageUnread(msg *db.Message, viewerID uint64, directThread bool) bool {
	if msg == nil {
		return false
	}
	if msg.SenderID == viewerID {
		return false
	}
	if directThread {
		return msg.ReceiverID != nil &&
			*msg.ReceiverID == viewerID &&
			msg.Status != db.MessageStatusRead
	}
	return msg.Status != db.MessageStatusRead
}

// IsThreadUnread reports whether a thread shows an unread indicator for
// the viewer, derived solely from its latest message. A thread with no
// messages is never unread.
func IsThreadUnread(latest *db.Message, viewerID uint64, directThread, hasAnyMessages bool) bool {
	if !hasAnyMessages || latest == nil {
		return false
	}
	return IsMessageUnread(latest, viewerID, directThread)
}
