package db

import (
	"time"
)

// Swipe actions.
const (
	SwipeActionLike = "like"
	SwipeActionPass = "pass"
)

// Thread types.
const (
	ThreadTypeDirect = "direct"
	ThreadTypeGym    = "gym"
	ThreadTypeCrew   = "crew"
)

// Message delivery statuses. Transitions are monotonic:
// sent -> delivered -> read, no regression.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

// User table. Identity itself comes from an external provider; this table
// backs the profile lookup (display name, avatar) and seed data.
type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	DisplayName  string `gorm:"size:64;not null"`
	AvatarURL    string `gorm:"size:255"`
	Active       bool   `gorm:"default:true"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// Swipe is one row of the append-only like/pass log.
//
// Unlike a per-pair upsert table, a later swipe by the same actor on the
// same target inserts a new row; the most recent row for a pair is
// authoritative for current intent.
//
// idx_swipe_pair_created(actor_id, target_id, created_at DESC) serves the
// latest-for-pair lookup the match check runs on every like.
type Swipe struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ActorID   uint64    `gorm:"not null;index:idx_swipe_pair_created,priority:1"`
	TargetID  uint64    `gorm:"not null;index:idx_swipe_pair_created,priority:2"`
	Action    string    `gorm:"size:8;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_swipe_pair_created,priority:3,sort:desc"`
}

// Match records a mutual like. The pair is canonicalized so that
// UserA < UserB; the unique index on (user_a, user_b) is what makes
// concurrent create attempts collapse to a single row.
type Match struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserA     uint64    `gorm:"not null;uniqueIndex:idx_match_pair,priority:1"`
	UserB     uint64    `gorm:"not null;uniqueIndex:idx_match_pair,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Thread is a conversation channel: 1:1 (direct), gym-scoped group, or
// crew-scoped group. Exactly one natural key is set per type:
//   - direct: MatchID (plus denormalized UserA/UserB for membership checks)
//   - gym:    (GymID, Title), Title from a fixed allow-list
//   - crew:   CrewID
//
// LastMessage/LastMessageAt are a cache maintained on every send.
type Thread struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement"`
	Type          string     `gorm:"size:8;not null;index"`
	MatchID       *uint64    `gorm:"uniqueIndex"`
	UserA         *uint64    `gorm:"index"`
	UserB         *uint64    `gorm:"index"`
	GymID         *uint64    `gorm:"uniqueIndex:idx_thread_gym_title,priority:1"`
	CrewID        *uint64    `gorm:"uniqueIndex"`
	Title         string     `gorm:"size:64;uniqueIndex:idx_thread_gym_title,priority:2"`
	LastMessage   string     `gorm:"size:255"`
	LastMessageAt *time.Time `gorm:"index"`
	CreatedAt     time.Time  `gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime"`
}

// ThreadParticipant defines membership for gym and crew threads.
// Direct threads use Thread.UserA/UserB instead.
type ThreadParticipant struct {
	ThreadID  uint64    `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint64    `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Message is an ordered, immutable-body chat entry. ReceiverID is set for
// direct threads only; group messages have no per-recipient receiver.
type Message struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	ThreadID   uint64    `gorm:"not null;index:idx_msg_thread_created,priority:1"`
	SenderID   uint64    `gorm:"not null"`
	ReceiverID *uint64
	Body       string    `gorm:"size:2000;not null"`
	Status     string    `gorm:"size:12;not null;default:sent"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_msg_thread_created,priority:2"`
}

// DeviceToken holds opaque push tokens per user. This core only reads them
// to hand off to the push gateway; token lifecycle (marking inactive on
// failure) belongs to the gateway integration.
type DeviceToken struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    uint64    `gorm:"not null;index"`
	Token     string    `gorm:"uniqueIndex;size:255;not null"`
	Active    bool      `gorm:"default:true"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// OtherDirectUser returns the direct-thread counterpart of userID, or 0 if
// the thread is not direct or the user is not one of the pair.
func (t *Thread) OtherDirectUser(userID uint64) uint64 {
	if t.Type != ThreadTypeDirect || t.UserA == nil || t.UserB == nil {
		return 0
	}
	switch userID {
	case *t.UserA:
		return *t.UserB
	case *t.UserB:
		return *t.UserA
	}
	return 0
}
