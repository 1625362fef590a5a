package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	t.Parallel()
	manager := NewJWTManager("test-secret", time.Hour)

	token, err := manager.Generate("player-1", "naruto", time.Now())
	require.NoError(t, err)

	claims, err := manager.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "player-1", claims.Id)
	assert.Equal(t, "naruto", claims.Name)
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	t.Parallel()
	manager := NewJWTManager("test-secret", time.Hour)

	token, err := manager.Generate("player-1", "naruto", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = manager.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTManager_WrongSecret(t *testing.T) {
	t.Parallel()
	manager := NewJWTManager("test-secret", time.Hour)
	other := NewJWTManager("other-secret", time.Hour)

	token, err := other.Generate("player-1", "naruto", time.Now())
	require.NoError(t, err)

	_, err = manager.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidTokenSignature)
}

func TestJWTManager_GarbageToken(t *testing.T) {
	t.Parallel()
	manager := NewJWTManager("test-secret", time.Hour)

	_, err := manager.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrCorruptedToken)
}
