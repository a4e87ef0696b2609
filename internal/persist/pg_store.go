package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Tyrowin/roomchat/internal/chat"
)

const (
	createMessagesTableSQL = `
CREATE TABLE IF NOT EXISTS group_messages (
	id       BIGSERIAL PRIMARY KEY,
	room     TEXT        NOT NULL,
	username TEXT        NOT NULL,
	body     TEXT        NOT NULL,
	sent_at  TIMESTAMPTZ NOT NULL
)`
	createMessagesIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_group_messages_room_sent
	ON group_messages (room, sent_at)`
	insertMessageSQL = `
INSERT INTO group_messages (room, username, body, sent_at)
VALUES ($1, $2, $3, $4)`
	recentMessagesSQL = `
SELECT room, username, body, sent_at
FROM group_messages
WHERE room = $1
ORDER BY sent_at DESC, id DESC
LIMIT $2`
)

// PgxConn is the subset of *pgxpool.Pool used by PgMessageStore.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgMessageStore persists messages to Postgres through pgx.
type PgMessageStore struct {
	db PgxConn
}

var _ HistoryStore = (*PgMessageStore)(nil)

// NewPgMessageStore creates the group_messages table if needed.
func NewPgMessageStore(ctx context.Context, db PgxConn) (*PgMessageStore, error) {
	if _, err := db.Exec(ctx, createMessagesTableSQL); err != nil {
		return nil, fmt.Errorf("create group_messages: %w", err)
	}
	if _, err := db.Exec(ctx, createMessagesIndexSQL); err != nil {
		return nil, fmt.Errorf("create group_messages index: %w", err)
	}
	return &PgMessageStore{db: db}, nil
}

// Append inserts one message.
func (s *PgMessageStore) Append(ctx context.Context, msg chat.ChatMessage) error {
	_, err := s.db.Exec(ctx, insertMessageSQL, msg.Room, msg.Username, msg.Body, msg.SentAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: insert message: %w", chat.ErrPersistence, err)
	}
	return nil
}

// Recent returns up to limit of the newest messages in room, oldest first.
func (s *PgMessageStore) Recent(ctx context.Context, room string, limit int) ([]chat.ChatMessage, error) {
	rows, err := s.db.Query(ctx, recentMessagesSQL, room, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: query messages: %w", chat.ErrPersistence, err)
	}

	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (chat.ChatMessage, error) {
		var (
			m      chat.ChatMessage
			sentAt time.Time
		)
		if err := row.Scan(&m.Room, &m.Username, &m.Body, &sentAt); err != nil {
			return chat.ChatMessage{}, err
		}
		m.SentAt = sentAt.UTC()
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan messages: %w", chat.ErrPersistence, err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
