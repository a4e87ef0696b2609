// Package config loads the chat server configuration from an optional YAML
// file and environment variables, applies defaults, and validates the result.
package config
