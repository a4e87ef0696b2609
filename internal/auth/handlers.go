package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

const maxBodyBytes = 1 << 20

// Handler serves the signup and login endpoints.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type messageResponse struct {
	Message  string `json:"message"`
	Username string `json:"username,omitempty"`
	Token    string `json:"token,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Signup handles POST /signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, err := h.svc.Signup(r.Context(), req); err != nil {
		h.writeError(w, "signup", err)
		return
	}
	h.writeJSON(w, http.StatusOK, messageResponse{Message: "User created"})
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.writeError(w, "login", err)
		return
	}
	h.writeJSON(w, http.StatusOK, messageResponse{
		Message:  "Login success",
		Username: result.Username,
		Token:    result.Token,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

// writeError maps service errors to responses. Request-shaped failures are
// 400s; anything else is logged and reported as a 500.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrMissingFields),
		errors.Is(err, ErrPasswordTooLong),
		errors.Is(err, ErrDuplicateUsername),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrWrongPassword):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("auth request failed", "op", op, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}
