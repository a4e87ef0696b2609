package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// errNotInRoom rejects room traffic from a session that has not joined any room.
var errNotInRoom = fmt.Errorf("%w: join a room first", chat.ErrValidation)

// MessageSink accepts chat messages for persistence without blocking.
type MessageSink interface {
	Append(msg chat.ChatMessage) bool
}

type noopSink struct{}

func (noopSink) Append(chat.ChatMessage) bool { return true }

// HubStats is a point-in-time view of the hub.
type HubStats struct {
	Sessions        int   `json:"sessions"`
	Rooms           int   `json:"rooms"`
	MessagesRelayed int64 `json:"messages_relayed"`
	TypingRelayed   int64 `json:"typing_relayed"`
	Rejected        int64 `json:"rejected"`
	Evicted         int64 `json:"evicted"`
	PersistDropped  int64 `json:"persist_dropped"`
}

// Hub owns the session registry and room router. Every mutation of either
// happens on the Run goroutine; pumps and handlers talk to it over channels.
type Hub struct {
	registry *chat.Registry
	router   *chat.Router
	sink     MessageSink
	logger   *slog.Logger
	now      func() time.Time

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundEvent
	tasks      chan func()

	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	running chan struct{}
	done    chan struct{}

	relayed        atomic.Int64
	typing         atomic.Int64
	rejected       atomic.Int64
	evicted        atomic.Int64
	persistDropped atomic.Int64
}

// NewHub creates a Hub. A nil sink disables persistence.
func NewHub(sink MessageSink, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = noopSink{}
	}

	router := chat.NewRouter(logger)
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:   chat.NewRegistry(router),
		router:     router,
		sink:       sink,
		logger:     logger,
		now:        time.Now,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundEvent),
		tasks:      make(chan func()),
		ctx:        ctx,
		cancel:     cancel,
		running:    make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Register hands a new client to the hub. It returns false once the hub is
// shutting down.
func (h *Hub) Register(c *Client) bool {
	if c == nil {
		return false
	}
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) dispatch(ev inboundEvent) bool {
	select {
	case h.inbound <- ev:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// exec runs fn on the hub goroutine and waits for it to finish. It returns
// false without running fn when the loop has not started or has stopped.
func (h *Hub) exec(fn func()) bool {
	select {
	case <-h.running:
	default:
		return false
	}

	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case h.tasks <- task:
	case <-h.ctx.Done():
		return false
	case <-h.done:
		return false
	}

	select {
	case <-finished:
		return true
	case <-h.done:
		return false
	}
}

// Stats returns session and room counts plus the relay counters. The counts
// are zero while the loop is not running.
func (h *Hub) Stats() HubStats {
	stats := HubStats{
		MessagesRelayed: h.relayed.Load(),
		TypingRelayed:   h.typing.Load(),
		Rejected:        h.rejected.Load(),
		Evicted:         h.evicted.Load(),
		PersistDropped:  h.persistDropped.Load(),
	}
	h.exec(func() {
		stats.Sessions = h.registry.Len()
		stats.Rooms = h.router.RoomCount()
	})
	return stats
}

// RoomMembers returns the usernames currently in room, ordered by
// connection ID.
func (h *Hub) RoomMembers(room string) []string {
	var names []string
	h.exec(func() {
		for _, s := range h.router.Members(room) {
			names = append(names, s.Username())
		}
	})
	return names
}

// Run is the hub's event loop. Call it once, in its own goroutine.
func (h *Hub) Run() {
	close(h.running)
	defer close(h.done)

	h.logger.Info("hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			if s := h.registry.Remove(client.id); s != nil {
				h.logger.Info("client unregistered",
					"conn_id", client.id,
					"username", client.username,
					"sessions", h.registry.Len(),
				)
			}

		case ev := <-h.inbound:
			h.handleInbound(ev)

		case task := <-h.tasks:
			task()
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	if _, err := h.registry.Create(client.id, client.username, client); err != nil {
		h.logger.Warn("rejecting client registration", "conn_id", client.id, "error", err)
		client.Close()
		if client.conn != nil {
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
		}
		return
	}

	h.logger.Info("client registered",
		"conn_id", client.id,
		"username", client.username,
		"addr", client.addr,
		"sessions", h.registry.Len(),
	)

	if client.conn == nil {
		return
	}
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) handleInbound(ev inboundEvent) {
	if ev.client == nil {
		return
	}
	sess, ok := h.registry.Get(ev.client.id)
	if !ok {
		return
	}
	if ev.err != nil {
		h.reject(sess, ev.name, ev.err)
		return
	}

	switch ev.name {
	case EventJoinRoom:
		if err := h.router.Join(sess, ev.room); err != nil {
			h.reject(sess, ev.name, err)
			return
		}
		h.logger.Debug("joined room", "conn_id", sess.ID(), "room", ev.room)

	case EventLeaveRoom:
		if h.router.Leave(sess, ev.room) {
			h.logger.Debug("left room", "conn_id", sess.ID(), "room", ev.room)
		}

	case EventChatMessage:
		h.relayChat(sess, ev.chat)

	case EventTyping:
		h.relayTyping(sess, ev.typing)
	}
}

// relayChat broadcasts a chat message to every member of its room,
// sender included, then queues it for persistence.
func (h *Hub) relayChat(sess *chat.Session, msg chat.ChatMessage) {
	if sess.State() != chat.StateInRoom {
		h.reject(sess, EventChatMessage, errNotInRoom)
		return
	}

	msg.SentAt = h.now().UTC()
	if msg.Username == "" {
		msg.Username = sess.Username()
	}

	payload, err := encodeEvent(EventMessage, msg.Payload)
	if err != nil {
		h.reject(sess, EventChatMessage, fmt.Errorf("%w: %w", chat.ErrValidation, err))
		return
	}

	result := h.router.Broadcast(msg.Room, payload, nil)
	h.evict(result.Failed)
	h.relayed.Add(1)

	if !h.sink.Append(msg) {
		h.persistDropped.Add(1)
		h.logger.Warn("message not queued for persistence", "room", msg.Room)
	}
}

// relayTyping forwards the typist's username to the other members of the
// room.
func (h *Hub) relayTyping(sess *chat.Session, notice chat.TypingNotice) {
	if sess.State() != chat.StateInRoom {
		h.reject(sess, EventTyping, errNotInRoom)
		return
	}
	if notice.Username == "" {
		notice.Username = sess.Username()
	}

	payload, err := encodeEvent(EventTyping, notice.Username)
	if err != nil {
		h.logger.Error("encoding typing event", "error", err)
		return
	}

	result := h.router.Broadcast(notice.Room, payload, sess)
	h.evict(result.Failed)
	h.typing.Add(1)
}

// reject tells only the sender that its event was refused.
func (h *Hub) reject(sess *chat.Session, event string, cause error) {
	h.rejected.Add(1)

	payload, err := encodeEvent(EventError, ErrorNotice{Event: event, Reason: cause.Error()})
	if err != nil {
		h.logger.Error("encoding error event", "error", err)
		return
	}
	if err := sess.Send(payload); err != nil {
		if errors.Is(err, chat.ErrTransport) {
			h.evict([]*chat.Session{sess})
		}
	}
}

// evict disconnects sessions whose transport failed.
func (h *Hub) evict(failed []*chat.Session) {
	for _, s := range failed {
		if h.registry.Remove(s.ID()) == nil {
			continue
		}
		h.evicted.Add(1)
		h.logger.Warn("evicted client after failed delivery",
			"conn_id", s.ID(),
			"username", s.Username(),
		)
	}
}

// shutdownClients closes every session. Closing a client's send channel
// makes its write pump send a close frame and drop the connection, which
// in turn ends the read pump.
func (h *Hub) shutdownClients() {
	ids := h.registry.IDs()
	h.logger.Info("shutting down client connections", "count", len(ids))

	for _, id := range ids {
		h.registry.Remove(id)
	}
}

// Shutdown stops the hub and waits for all client goroutines, or returns
// context.DeadlineExceeded after timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached; some client goroutines may still be running")
		return context.DeadlineExceeded
	}
}
