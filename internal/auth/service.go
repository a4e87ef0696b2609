package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrPasswordTooLong is returned when a password exceeds bcrypt's 72-byte limit.
var ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

const maxPasswordBytes = 72

// PasswordHasher hashes new passwords and verifies existing ones.
type PasswordHasher interface {
	CredentialVerifier
	Hash(password string) (string, error)
}

// SignupRequest is the body of POST /signup.
type SignupRequest struct {
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Password  string `json:"password"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Username string
	Token    string
}

// Service handles signup and login.
type Service struct {
	users  UserStore
	hasher PasswordHasher
	tokens *TokenIssuer
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(users UserStore, hasher PasswordHasher, tokens *TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

// Signup creates a new account.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Firstname = strings.TrimSpace(req.Firstname)
	req.Lastname = strings.TrimSpace(req.Lastname)

	if missing := missingFields(map[string]string{
		"username":  req.Username,
		"firstname": req.Firstname,
		"lastname":  req.Lastname,
		"password":  req.Password,
	}); missing != "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingFields, missing)
	}
	if len(req.Password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	_, err := s.users.FindByUsername(ctx, req.Username)
	switch {
	case err == nil:
		return nil, ErrDuplicateUsername
	case !errors.Is(err, ErrUserNotFound):
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Firstname:    req.Firstname,
		Lastname:     req.Lastname,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user signed up", "username", user.Username)
	return user, nil
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	req.Username = strings.TrimSpace(req.Username)
	if missing := missingFields(map[string]string{
		"username": req.Username,
		"password": req.Password,
	}); missing != "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingFields, missing)
	}

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, ErrWrongPassword
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.Info("user logged in", "username", user.Username)
	return &LoginResult{Username: user.Username, Token: token}, nil
}

// missingFields lists the empty fields in form order.
func missingFields(fields map[string]string) string {
	var missing []string
	for _, name := range []string{"username", "firstname", "lastname", "password"} {
		if v, ok := fields[name]; ok && v == "" {
			missing = append(missing, name)
		}
	}
	return strings.Join(missing, ", ")
}
