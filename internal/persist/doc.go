// Package persist records chat messages without holding up live delivery.
//
// A Sink accepts messages on a bounded queue and writes them to a
// MessageStore from a small worker pool. Store failures are logged and
// counted; they never reach the client that sent the message.
package persist
