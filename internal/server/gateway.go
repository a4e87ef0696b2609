package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/persist"
)

const anonymousUser = "anonymous"

// TokenValidator resolves a bearer token to a username.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// HistoryReader returns the most recent messages of a room, oldest first.
type HistoryReader interface {
	Recent(ctx context.Context, room string, limit int) ([]chat.ChatMessage, error)
}

// Gateway serves the WebSocket endpoint and the read-only HTTP endpoints
// around the hub.
type Gateway struct {
	hub      *Hub
	cfg      Config
	origins  *originPolicy
	upgrader websocket.Upgrader
	tokens   TokenValidator
	history  HistoryReader
	logger   *slog.Logger
}

// NewGateway builds a Gateway. tokens and history may be nil, which disables
// token identity and the history endpoint.
func NewGateway(hub *Hub, cfg Config, tokens TokenValidator, history HistoryReader, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.sanitized()

	g := &Gateway{
		hub:     hub,
		cfg:     cfg,
		origins: newOriginPolicy(cfg.AllowedOrigins, logger),
		tokens:  tokens,
		history: history,
		logger:  logger,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.origins.checkOrigin,
	}
	return g
}

// WebSocketHandler upgrades the request and registers a new client with the
// hub. The identity comes from ?token= when present, otherwise ?username=.
func (g *Gateway) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	username, err := g.resolveUsername(r)
	if err != nil {
		g.logger.Warn("rejecting websocket handshake", "addr", r.RemoteAddr, "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, g.hub, uuid.NewString(), username, r.RemoteAddr, g.cfg)
	if !g.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
	}
}

var errMissingToken = errors.New("missing token")

func (g *Gateway) resolveUsername(r *http.Request) (string, error) {
	query := r.URL.Query()

	if token := strings.TrimSpace(query.Get("token")); token != "" {
		if g.tokens == nil {
			return "", errors.New("token authentication is not configured")
		}
		return g.tokens.Validate(token)
	}
	if g.cfg.RequireToken {
		return "", errMissingToken
	}

	if username := strings.TrimSpace(query.Get("username")); username != "" {
		return username, nil
	}
	return anonymousUser, nil
}

type healthResponse struct {
	Status string   `json:"status"`
	Hub    HubStats `json:"hub"`
}

// HealthHandler reports liveness and hub counters.
func (g *Gateway) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Hub: g.hub.Stats()})
}

type historyResponse struct {
	Room     string             `json:"room"`
	Messages []chat.ChatMessage `json:"messages"`
}

// HistoryHandler serves GET /rooms/{room}/messages?limit=N.
func (g *Gateway) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if g.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history is not available"})
		return
	}

	room := chi.URLParam(r, "room")
	if strings.TrimSpace(room) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing room"})
		return
	}

	limit := persist.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	msgs, err := g.history.Recent(r.Context(), room, persist.ClampLimit(limit))
	if err != nil {
		g.logger.Error("loading room history", "room", room, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load history"})
		return
	}
	if msgs == nil {
		msgs = []chat.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Room: room, Messages: msgs})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
