package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
)

const testOrigin = "http://localhost:8080"

type staticTokens map[string]string

func (s staticTokens) Validate(token string) (string, error) {
	if name, ok := s[token]; ok {
		return name, nil
	}
	return "", errors.New("invalid token")
}

type fakeHistory struct {
	mu        sync.Mutex
	lastRoom  string
	lastLimit int
	msgs      []chat.ChatMessage
	err       error
}

func (f *fakeHistory) Recent(_ context.Context, room string, limit int) ([]chat.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRoom = room
	f.lastLimit = limit
	return f.msgs, f.err
}

type gatewayFixture struct {
	hub    *Hub
	server *httptest.Server
	wsURL  string
}

func newGatewayFixture(t *testing.T, cfg Config, tokens TokenValidator, history HistoryReader) *gatewayFixture {
	t.Helper()
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{testOrigin}
	}

	h := NewHub(nil, discardLogger())
	go h.Run()

	gw := NewGateway(h, cfg, tokens, history, discardLogger())
	srv := httptest.NewServer(SetupRoutes(gw, nil))
	t.Cleanup(func() {
		_ = h.Shutdown(2 * time.Second)
		srv.Close()
	})

	return &gatewayFixture{
		hub:    h,
		server: srv,
		wsURL:  "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

func (f *gatewayFixture) dial(t *testing.T, query url.Values) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	target := f.wsURL
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", testOrigin)

	conn, resp, err := dialer.Dial(target, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

func (f *gatewayFixture) connect(t *testing.T, username string) *websocket.Conn {
	t.Helper()
	conn, _, err := f.dial(t, url.Values{"username": {username}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (f *gatewayFixture) waitForMembers(t *testing.T, room string, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		got := f.hub.RoomMembers(room)
		if len(got) != len(want) {
			return false
		}
		seen := make(map[string]int, len(got))
		for _, name := range got {
			seen[name]++
		}
		for _, name := range want {
			if seen[name] == 0 {
				return false
			}
			seen[name]--
		}
		return true
	}, 2*time.Second, 10*time.Millisecond, "room %s members", room)
}

func writeEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := encodeEvent(event, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func readEvent(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func expectNoEvent(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no event, got %s", raw)
	}
}

func TestGatewaySameRoomChatAndTyping(t *testing.T) {
	f := newGatewayFixture(t, Config{}, nil, nil)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")

	writeEvent(t, a, EventJoinRoom, "general")
	writeEvent(t, b, EventJoinRoom, "general")
	f.waitForMembers(t, "general", "alice", "bob")

	payload := map[string]string{"room": "general", "username": "alice", "body": "hello"}
	writeEvent(t, a, EventChatMessage, payload)

	want, err := json.Marshal(payload)
	require.NoError(t, err)
	for _, conn := range []*websocket.Conn{a, b} {
		env := readEvent(t, conn)
		assert.Equal(t, EventMessage, env.Event)
		assert.JSONEq(t, string(want), string(env.Data))
	}

	writeEvent(t, b, EventTyping, map[string]string{"room": "general", "username": "bob"})
	env := readEvent(t, a)
	assert.Equal(t, EventTyping, env.Event)
	assert.JSONEq(t, `"bob"`, string(env.Data))
	expectNoEvent(t, b, 200*time.Millisecond)
}

func TestGatewaySeparateRooms(t *testing.T) {
	f := newGatewayFixture(t, Config{}, nil, nil)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")

	writeEvent(t, a, EventJoinRoom, "general")
	writeEvent(t, b, EventJoinRoom, "random")
	f.waitForMembers(t, "general", "alice")
	f.waitForMembers(t, "random", "bob")

	writeEvent(t, a, EventChatMessage, map[string]string{"room": "general", "username": "alice", "body": "x"})
	assert.Equal(t, EventMessage, readEvent(t, a).Event)
	expectNoEvent(t, b, 200*time.Millisecond)
}

func TestGatewayDisconnectLeavesRooms(t *testing.T) {
	f := newGatewayFixture(t, Config{}, nil, nil)
	a := f.connect(t, "alice")
	b := f.connect(t, "bob")

	writeEvent(t, a, EventJoinRoom, "general")
	writeEvent(t, b, EventJoinRoom, "general")
	f.waitForMembers(t, "general", "alice", "bob")

	require.NoError(t, b.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.NoError(t, b.Close())
	f.waitForMembers(t, "general", "alice")

	writeEvent(t, a, EventChatMessage, map[string]string{"room": "general", "username": "alice", "body": "still here"})
	assert.Equal(t, EventMessage, readEvent(t, a).Event)
}

func TestGatewaySendsErrorEvent(t *testing.T) {
	f := newGatewayFixture(t, Config{}, nil, nil)
	a := f.connect(t, "alice")

	writeEvent(t, a, EventChatMessage, map[string]string{"username": "alice", "body": "no room"})

	env := readEvent(t, a)
	assert.Equal(t, EventError, env.Event)
	var notice ErrorNotice
	require.NoError(t, json.Unmarshal(env.Data, &notice))
	assert.Equal(t, EventChatMessage, notice.Event)
	assert.Contains(t, notice.Reason, "missing room")
}

func TestGatewayIdentity(t *testing.T) {
	tokens := staticTokens{"good": "carol"}

	t.Run("token wins over username", func(t *testing.T) {
		f := newGatewayFixture(t, Config{}, tokens, nil)
		conn, _, err := f.dial(t, url.Values{"token": {"good"}, "username": {"mallory"}})
		require.NoError(t, err)
		defer conn.Close()

		writeEvent(t, conn, EventJoinRoom, "general")
		f.waitForMembers(t, "general", "carol")
	})

	t.Run("username fallback", func(t *testing.T) {
		f := newGatewayFixture(t, Config{}, tokens, nil)
		conn := f.connect(t, "dave")
		writeEvent(t, conn, EventJoinRoom, "general")
		f.waitForMembers(t, "general", "dave")
	})

	t.Run("anonymous", func(t *testing.T) {
		f := newGatewayFixture(t, Config{}, tokens, nil)
		conn, _, err := f.dial(t, nil)
		require.NoError(t, err)
		defer conn.Close()

		writeEvent(t, conn, EventJoinRoom, "general")
		f.waitForMembers(t, "general", anonymousUser)
	})

	t.Run("invalid token", func(t *testing.T) {
		f := newGatewayFixture(t, Config{}, tokens, nil)
		_, resp, err := f.dial(t, url.Values{"token": {"bad"}})
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("token required", func(t *testing.T) {
		f := newGatewayFixture(t, Config{RequireToken: true}, tokens, nil)
		_, resp, err := f.dial(t, url.Values{"username": {"dave"}})
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestGatewayRejectsDisallowedOrigin(t *testing.T) {
	f := newGatewayFixture(t, Config{}, nil, nil)

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", "http://evil.example.com")

	conn, resp, err := dialer.Dial(f.wsURL, headers)
	if conn != nil {
		_ = conn.Close()
	}
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGatewayWebSocketRejectsPost(t *testing.T) {
	f := newGatewayFixture(t, Config{}, nil, nil)

	resp, err := http.Post(f.server.URL+"/ws", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestGatewayHealth(t *testing.T) {
	f := newGatewayFixture(t, Config{}, nil, nil)
	a := f.connect(t, "alice")
	writeEvent(t, a, EventJoinRoom, "general")
	f.waitForMembers(t, "general", "alice")

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Hub.Sessions)
	assert.Equal(t, 1, body.Hub.Rooms)
}

func TestGatewayHistory(t *testing.T) {
	sentAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	history := &fakeHistory{msgs: []chat.ChatMessage{
		{Room: "general", Username: "alice", Body: "first", SentAt: sentAt},
	}}
	f := newGatewayFixture(t, Config{}, nil, history)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLimit int
	}{
		{"default limit", "", http.StatusOK, 50},
		{"explicit limit", "?limit=10", http.StatusOK, 10},
		{"limit clamped", "?limit=500", http.StatusOK, 200},
		{"bad limit", "?limit=abc", http.StatusBadRequest, 0},
		{"zero limit", "?limit=0", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history.mu.Lock()
			history.lastLimit = 0
			history.mu.Unlock()

			resp, err := http.Get(f.server.URL + "/rooms/general/messages" + tt.query)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tt.wantCode, resp.StatusCode)

			history.mu.Lock()
			assert.Equal(t, tt.wantLimit, history.lastLimit)
			history.mu.Unlock()

			if tt.wantCode != http.StatusOK {
				return
			}
			var body historyResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "general", body.Room)
			require.Len(t, body.Messages, 1)
			assert.Equal(t, "first", body.Messages[0].Body)
			assert.True(t, sentAt.Equal(body.Messages[0].SentAt))
		})
	}
}

func TestGatewayHistoryUnavailable(t *testing.T) {
	f := newGatewayFixture(t, Config{}, nil, nil)

	resp, err := http.Get(f.server.URL + "/rooms/general/messages")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGatewayRoutesAccounts(t *testing.T) {
	h := NewHub(nil, discardLogger())
	go h.Run()
	t.Cleanup(func() { _ = h.Shutdown(time.Second) })

	accounts := &recordingAccounts{}
	gw := NewGateway(h, Config{AllowedOrigins: []string{testOrigin}}, nil, nil, discardLogger())
	handler := SetupRoutes(gw, accounts)

	for _, path := range []string{"/signup", "/login"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}")))
		assert.Equal(t, http.StatusNoContent, rec.Code, path)
	}
	assert.Equal(t, []string{"signup", "login"}, accounts.calls)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/signup", http.NoBody))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type recordingAccounts struct {
	calls []string
}

func (a *recordingAccounts) Signup(w http.ResponseWriter, _ *http.Request) {
	a.calls = append(a.calls, "signup")
	w.WriteHeader(http.StatusNoContent)
}

func (a *recordingAccounts) Login(w http.ResponseWriter, _ *http.Request) {
	a.calls = append(a.calls, "login")
	w.WriteHeader(http.StatusNoContent)
}

func TestGatewayHealthBeforeHubRuns(t *testing.T) {
	h := NewHub(nil, discardLogger())
	gw := NewGateway(h, Config{AllowedOrigins: []string{testOrigin}}, nil, nil, discardLogger())

	rec := httptest.NewRecorder()
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		SetupRoutes(gw, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	}()

	select {
	case <-finished:
		assert.Equal(t, http.StatusOK, rec.Code)
	case <-time.After(time.Second):
		t.Fatal("/health blocked before the hub loop started")
	}
}
