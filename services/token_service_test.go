package services

import (
	"context"
	"testing"
	"time"

	"github.com/mindmates/backend/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	s := NewTokenService("test-secret", time.Hour, nil)

	token, err := s.Generate(42, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := s.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	s := NewTokenService("test-secret", -time.Minute, nil)

	token, err := s.Generate(42, "alice")
	require.NoError(t, err)

	_, err = s.Validate(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthenticated, apperrors.CodeOf(err))
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService("secret-a", time.Hour, nil)
	verifier := NewTokenService("secret-b", time.Hour, nil)

	token, err := issuer.Generate(42, "alice")
	require.NoError(t, err)

	_, err = verifier.Validate(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthenticated, apperrors.CodeOf(err))
}

func TestValidateRejectsGarbage(t *testing.T) {
	s := NewTokenService("test-secret", time.Hour, nil)

	_, err := s.Validate(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthenticated, apperrors.CodeOf(err))
}

func TestBlacklistWithoutRedisIsNoop(t *testing.T) {
	s := NewTokenService("test-secret", time.Hour, nil)

	token, err := s.Generate(42, "alice")
	require.NoError(t, err)

	// No redis configured: logout succeeds but cannot revoke.
	require.NoError(t, s.Blacklist(context.Background(), token))

	userID, err := s.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
}
