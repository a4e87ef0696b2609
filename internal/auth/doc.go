// Package auth implements account signup and login for the chat server and
// issues the tokens that carry a username into a realtime session.
package auth
