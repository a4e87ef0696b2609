// Package chat holds the room relay core: live sessions, the registry that
// owns them, and the router that tracks room membership and fans events out
// to members.
//
// None of the types here are safe for concurrent use. They are meant to be
// owned by a single event loop that serializes every mutation, which is what
// gives a broadcast its atomicity relative to other inbound events.
package chat
