package realtime

import (
	"fmt"
	"time"
)

// Ops carried on the change stream.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
)

// Tables carried on the change stream.
const (
	TableSwipes   = "swipes"
	TableMatches  = "matches"
	TableMessages = "messages"
)

// Event is one change notification. The stream is a low-latency hint, not
// a ledger: consumers reconcile through a full re-fetch, so an event only
// needs enough to route and to render a toast, not the whole row.
type Event struct {
	Table     string    `json:"table"`
	Op        string    `json:"op"`
	ID        uint64    `json:"id"`
	ThreadID  uint64    `json:"thread_id,omitempty"`
	ActorID   uint64    `json:"actor_id,omitempty"`
	TargetID  uint64    `json:"target_id,omitempty"`
	Body      string    `json:"body,omitempty"`
	At        time.Time `json:"at"`
}

// Topic names. One redis pub/sub channel per topic; redis guarantees FIFO
// within a channel, which is the only ordering the engine promises.

func TopicSwipesFor(userID uint64) string {
	return fmt.Sprintf("rt:swipes:%d", userID)
}

func TopicMatchesFor(userID uint64) string {
	return fmt.Sprintf("rt:matches:%d", userID)
}

func TopicMessagesIn(threadID uint64) string {
	return fmt.Sprintf("rt:messages:t:%d", threadID)
}

const TopicMessagesAll = "rt:messages:all"
