package chat

import (
	"fmt"
	"io"
	"log/slog"
)

type fakeOutbox struct {
	received [][]byte
	fail     bool
	closes   int
}

func (f *fakeOutbox) Deliver(payload []byte) error {
	if f.fail {
		return fmt.Errorf("%w: buffer full", ErrTransport)
	}
	f.received = append(f.received, payload)
	return nil
}

func (f *fakeOutbox) Close() { f.closes++ }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry() (*Registry, *Router) {
	router := NewRouter(discardLogger())
	return NewRegistry(router), router
}
