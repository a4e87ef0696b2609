package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub(t *testing.T, sink MessageSink) *Hub {
	t.Helper()
	h := NewHub(sink, discardLogger())
	go h.Run()
	t.Cleanup(func() {
		_ = h.Shutdown(2 * time.Second)
	})
	return h
}

// addClient registers a connectionless client, so the test reads its send
// channel directly instead of a socket.
func addClient(t *testing.T, h *Hub, id, username string, buffer int) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SendBuffer = buffer
	c := NewClient(nil, h, id, username, "test", cfg)
	require.True(t, h.Register(c))
	flush(h)
	return c
}

func sendRaw(t *testing.T, h *Hub, c *Client, raw string) {
	t.Helper()
	ev := decodeEvent([]byte(raw))
	ev.client = c
	require.True(t, h.dispatch(ev))
}

// flush waits until the hub has processed everything queued before it.
func flush(h *Hub) {
	h.exec(func() {})
}

// drain returns every frame currently queued for c.
func drain(t *testing.T, c *Client) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return out
			}
			var env Envelope
			require.NoError(t, json.Unmarshal(raw, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

// sendChanClosed reports whether c's send channel has been closed, draining
// anything still queued.
func sendChanClosed(c *Client) bool {
	for {
		select {
		case _, ok := <-c.send:
			if !ok {
				return true
			}
		default:
			return false
		}
	}
}

type recordingSink struct {
	mu     sync.Mutex
	msgs   []chat.ChatMessage
	accept bool
}

func (s *recordingSink) Append(msg chat.ChatMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.accept
}

func (s *recordingSink) messages() []chat.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.ChatMessage(nil), s.msgs...)
}
