package persist

import (
	"context"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Default and maximum page sizes for Recent.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// MessageStore is append-only storage for chat messages.
type MessageStore interface {
	Append(ctx context.Context, msg chat.ChatMessage) error
}

// HistoryStore is a MessageStore that can also read back a room's recent
// messages, oldest first.
type HistoryStore interface {
	MessageStore
	Recent(ctx context.Context, room string, limit int) ([]chat.ChatMessage, error)
}

// ClampLimit maps a requested page size onto [1, MaxHistoryLimit], using
// DefaultHistoryLimit for non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
