package persist

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// messageRecord is the row layout of the group_messages table.
type messageRecord struct {
	ID       uint      `gorm:"primaryKey"`
	Room     string    `gorm:"index:idx_group_messages_room_sent;not null;type:text"`
	Username string    `gorm:"not null;type:text"`
	Body     string    `gorm:"not null;type:text"`
	SentAt   time.Time `gorm:"index:idx_group_messages_room_sent;not null"`
}

// TableName returns the table name for messageRecord.
func (messageRecord) TableName() string {
	return "group_messages"
}

// GormMessageStore persists messages through GORM.
type GormMessageStore struct {
	db *gorm.DB
}

var _ HistoryStore = (*GormMessageStore)(nil)

// NewGormMessageStore migrates the group_messages table and returns a store.
func NewGormMessageStore(db *gorm.DB) (*GormMessageStore, error) {
	if err := db.AutoMigrate(&messageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate group_messages: %w", err)
	}
	return &GormMessageStore{db: db}, nil
}

// Append inserts one message.
func (s *GormMessageStore) Append(ctx context.Context, msg chat.ChatMessage) error {
	rec := messageRecord{
		Room:     msg.Room,
		Username: msg.Username,
		Body:     msg.Body,
		SentAt:   msg.SentAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("%w: insert message: %w", chat.ErrPersistence, err)
	}
	return nil
}

// Recent returns up to limit of the newest messages in room, oldest first.
func (s *GormMessageStore) Recent(ctx context.Context, room string, limit int) ([]chat.ChatMessage, error) {
	var records []messageRecord
	err := s.db.WithContext(ctx).
		Where("room = ?", room).
		Order("sent_at DESC").
		Order("id DESC").
		Limit(ClampLimit(limit)).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("%w: query messages: %w", chat.ErrPersistence, err)
	}

	out := make([]chat.ChatMessage, len(records))
	for i, rec := range records {
		out[len(records)-1-i] = chat.ChatMessage{
			Room:     rec.Room,
			Username: rec.Username,
			Body:     rec.Body,
			SentAt:   rec.SentAt.UTC(),
		}
	}
	return out, nil
}
