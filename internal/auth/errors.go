package auth

import "errors"

var (
	// ErrMissingFields is returned when a required request field is empty.
	ErrMissingFields = errors.New("missing required fields")
	// ErrDuplicateUsername is returned when the username is already taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrUserNotFound is returned when no account has the username.
	ErrUserNotFound = errors.New("user not found")
	// ErrWrongPassword is returned when the password does not match.
	ErrWrongPassword = errors.New("wrong password")
	// ErrInvalidToken is returned for malformed, expired or forged tokens.
	ErrInvalidToken = errors.New("invalid token")
)
