package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cruxline/crux-engine/internal/apperr"
	"github.com/cruxline/crux-engine/internal/db"
	"github.com/cruxline/crux-engine/internal/utils/pagination"
)

// MessageRepository provides data access for per-thread message streams.
// Bodies are immutable once appended; only Status moves, and only forward.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new repository bound to the given DB connection.
func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

// Append inserts a message at the tail of its thread's stream.
func (r *MessageRepository) Append(ctx context.Context, threadID, senderID uint64, receiverID *uint64, body string) (*db.Message, error) {
	msg := db.Message{
		ThreadID:   threadID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		Status:     db.MessageStatusSent,
	}
	if err := r.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, apperr.FromDB(err)
	}
	return &msg, nil
}

// List returns a thread's messages ordered by created_at ascending, with
// cursor pagination: pass the returned token to continue after the last
// row of the previous page.
func (r *MessageRepository) List(ctx context.Context, threadID uint64, paginationToken *string, limit int) ([]db.Message, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, apperr.Validation("invalid pagination token")
	}

	query := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC, id ASC").
		Limit(limit + 1)

	if cursor.MessageID > 0 && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(created_at > ? OR (created_at = ? AND id > ?))",
			ts, ts, cursor.MessageID,
		)
	}

	var messages []db.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, nil, apperr.FromDB(err)
	}

	var nextToken *string
	if len(messages) > limit {
		last := messages[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			MessageID:   last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		messages = messages[:limit]
	}

	return messages, nextToken, nil
}

// Latest returns a thread's newest message, or nil if none was ever sent.
func (r *MessageRepository) Latest(ctx context.Context, threadID uint64) (*db.Message, error) {
	var msg db.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at DESC, id DESC").
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.FromDB(err)
	}
	return &msg, nil
}

// LatestPerThread returns the newest message of each listed thread in one
// query. Threads with no messages are absent from the result map.
func (r *MessageRepository) LatestPerThread(ctx context.Context, threadIDs []uint64) (map[uint64]*db.Message, error) {
	result := make(map[uint64]*db.Message, len(threadIDs))
	if len(threadIDs) == 0 {
		return result, nil
	}

	var messages []db.Message
	err := r.db.WithContext(ctx).
		Joins("JOIN (SELECT thread_id, MAX(id) AS max_id FROM messages WHERE thread_id IN ? GROUP BY thread_id) latest ON messages.id = latest.max_id", threadIDs).
		Find(&messages).Error
	if err != nil {
		return nil, apperr.FromDB(err)
	}

	for i := range messages {
		m := messages[i]
		result[m.ThreadID] = &m
	}
	return result, nil
}

// MarkRead advances to read every message in the thread not sent by the
// reader. Read is terminal, so concurrent calls converge on the same state.
func (r *MessageRepository) MarkRead(ctx context.Context, threadID, readerID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("thread_id = ? AND sender_id <> ? AND status <> ?", threadID, readerID, db.MessageStatusRead).
		Update("status", db.MessageStatusRead)
	if res.Error != nil {
		return 0, apperr.FromDB(res.Error)
	}
	return res.RowsAffected, nil
}

// MarkDelivered advances sent messages (not authored by the user) to
// delivered. Messages already read stay read; the status ladder never
// steps backward.
func (r *MessageRepository) MarkDelivered(ctx context.Context, threadID, userID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("thread_id = ? AND sender_id <> ? AND status = ?", threadID, userID, db.MessageStatusSent).
		Update("status", db.MessageStatusDelivered)
	if res.Error != nil {
		return 0, apperr.FromDB(res.Error)
	}
	return res.RowsAffected, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
