package chat

import (
	"encoding/json"
	"time"
)

// ChatMessage is one message sent to a room. SentAt is assigned on receipt.
// Payload keeps the client's original event data so that members receive it
// verbatim; it is not persisted.
type ChatMessage struct {
	Room     string          `json:"room"`
	Username string          `json:"username"`
	Body     string          `json:"body"`
	SentAt   time.Time       `json:"timestamp"`
	Payload  json.RawMessage `json:"-"`
}

// TypingNotice is an ephemeral "user is typing" signal. It is never stored.
type TypingNotice struct {
	Room     string
	Username string
}
