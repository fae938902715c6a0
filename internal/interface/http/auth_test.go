package http

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAPIKey_RoundTrip(t *testing.T) {
	key := "cch_live_8f2a91c4d7e6b3a5f0e1"

	hash, err := HashAPIKey(key)
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("cch_live_wrong_key_value")))
}

func TestKeyPrefix(t *testing.T) {
	assert.Equal(t, "cch_live_8f2", KeyPrefix("cch_live_8f2a91c4d7e6b3a5f0e1"))
	assert.Equal(t, "short", KeyPrefix("short"))
}

func TestAPIKeyAuthenticator_RejectsShortKey(t *testing.T) {
	// Keys no longer than the lookup prefix cannot carry a secret part
	// and are rejected before any repository access.
	auth := NewAPIKeyAuthenticator(nil)

	_, err := auth.Authenticate(context.Background(), "cch_live_8f2")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}
