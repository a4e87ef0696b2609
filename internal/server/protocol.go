package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Wire event names.
const (
	EventJoinRoom    = "joinRoom"
	EventLeaveRoom   = "leaveRoom"
	EventChatMessage = "chatMessage"
	EventTyping      = "typing"
	EventMessage     = "message"
	EventError       = "error"
)

// Envelope is the JSON frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ErrorNotice is the data of an outbound error event.
type ErrorNotice struct {
	Event  string `json:"event,omitempty"`
	Reason string `json:"reason"`
}

// inboundEvent is a decoded client event on its way to the hub. A non-nil
// err means the event was rejected and only the sender is told.
type inboundEvent struct {
	client *Client
	name   string
	room   string
	chat   chat.ChatMessage
	typing chat.TypingNotice
	err    error
}

type roomRef struct {
	Room string `json:"room"`
}

type chatPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	Body     string `json:"body"`
}

type typingPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// decodeEvent parses and validates one client frame. The returned event
// always carries the event name when it could be read.
func decodeEvent(raw []byte) inboundEvent {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return inboundEvent{err: fmt.Errorf("%w: malformed event frame", chat.ErrValidation)}
	}

	ev := inboundEvent{name: env.Event}
	switch env.Event {
	case EventJoinRoom, EventLeaveRoom:
		ev.room, ev.err = decodeRoomRef(env.Data)

	case EventChatMessage:
		var p chatPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			ev.err = fmt.Errorf("%w: chatMessage data must be an object", chat.ErrValidation)
			break
		}
		if strings.TrimSpace(p.Room) == "" {
			ev.err = fmt.Errorf("%w: chatMessage missing room", chat.ErrValidation)
			break
		}
		ev.room = p.Room
		ev.chat = chat.ChatMessage{
			Room:     p.Room,
			Username: p.Username,
			Body:     p.Body,
			Payload:  append(json.RawMessage(nil), env.Data...),
		}

	case EventTyping:
		var p typingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			ev.err = fmt.Errorf("%w: typing data must be an object", chat.ErrValidation)
			break
		}
		if strings.TrimSpace(p.Room) == "" {
			ev.err = fmt.Errorf("%w: typing missing room", chat.ErrValidation)
			break
		}
		ev.room = p.Room
		ev.typing = chat.TypingNotice{Room: p.Room, Username: p.Username}

	case "":
		ev.err = fmt.Errorf("%w: missing event name", chat.ErrValidation)

	default:
		ev.err = fmt.Errorf("%w: unknown event %q", chat.ErrValidation, env.Event)
	}
	return ev
}

// decodeRoomRef accepts either a bare room string or {"room": "..."}.
func decodeRoomRef(data json.RawMessage) (string, error) {
	var room string
	if err := json.Unmarshal(data, &room); err != nil {
		var ref roomRef
		if err := json.Unmarshal(data, &ref); err != nil {
			return "", fmt.Errorf("%w: room must be a string", chat.ErrValidation)
		}
		room = ref.Room
	}
	if strings.TrimSpace(room) == "" {
		return "", fmt.Errorf("%w: missing room", chat.ErrValidation)
	}
	return room, nil
}

// encodeEvent builds an outbound frame.
func encodeEvent(name string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: name, Data: raw})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
