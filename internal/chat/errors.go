package chat

import "errors"

var (
	// ErrValidation marks a malformed or incomplete client event.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a reference to a session or room that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTransport marks a failed delivery to a single member.
	ErrTransport = errors.New("transport failure")
	// ErrPersistence marks a failed message store write.
	ErrPersistence = errors.New("persistence failure")
	// ErrDuplicateConnection is returned when a connection ID is registered twice.
	ErrDuplicateConnection = errors.New("duplicate connection id")
)
