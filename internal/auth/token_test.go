package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(TokenConfig{Secret: "test-secret", TTL: time.Hour, Issuer: "roomchat"})

	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	username, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestTokenIssuerRejects(t *testing.T) {
	issuer := NewTokenIssuer(TokenConfig{Secret: "test-secret", TTL: time.Hour, Issuer: "roomchat"})
	other := NewTokenIssuer(TokenConfig{Secret: "other-secret", TTL: time.Hour, Issuer: "roomchat"})
	foreign := NewTokenIssuer(TokenConfig{Secret: "test-secret", TTL: time.Hour, Issuer: "someone-else"})

	forged, err := other.Issue("alice")
	require.NoError(t, err)
	wrongIssuer, err := foreign.Issue("alice")
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"empty":        "",
		"wrong secret": forged,
		"wrong issuer": wrongIssuer,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Validate(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenIssuerExpired(t *testing.T) {
	issuer := NewTokenIssuer(TokenConfig{Secret: "test-secret", TTL: time.Minute, Issuer: "roomchat"})
	issued := time.Now().Add(-time.Hour)
	issuer.now = func() time.Time { return issued }

	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}
