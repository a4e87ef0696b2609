// Package server implements the realtime gateway of the chat server.
//
// A single Hub goroutine owns the session registry and room router and
// processes connection events one at a time. Each WebSocket connection is a
// Client with its own read and write pumps; the read pump decodes and
// validates client events and hands them to the hub, the write pump drains
// the client's buffered send channel onto the wire.
package server
