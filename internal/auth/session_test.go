package auth

import (
	"fmt"
	"testing"

	"ipal-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Lifecycle(t *testing.T) {
	s := NewSession("", nil)
	assert.False(t, s.IsAuthenticated())
	assert.ErrorIs(t, s.Err(), ErrNotAuthenticated)

	s.Login("tok", &models.User{UID: "u1", Email: "ops@example.com"})
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "tok", s.Token())
	assert.Equal(t, "u1", s.User().UID)
	assert.NoError(t, s.Err())

	s.Revoke(ErrSessionExpired)
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.Token())
	assert.True(t, IsSessionExpired(s.Err()))

	s.Login("tok2", nil)
	assert.True(t, s.IsAuthenticated())
}

func TestSession_RevokeNotifiesOnce(t *testing.T) {
	s := NewSession("tok", nil)

	var reasons []error
	s.OnRevoke(func(reason error) { reasons = append(reasons, reason) })
	removed := 0
	cancel := s.OnRevoke(func(error) { removed++ })
	cancel()

	s.Revoke(fmt.Errorf("api: %w", ErrSessionExpired))
	s.Revoke(ErrLoggedOut)

	require.Len(t, reasons, 1)
	assert.True(t, IsSessionExpired(reasons[0]))
	assert.Zero(t, removed)
}

func TestSession_RevokeDefaultsToLogout(t *testing.T) {
	s := NewSession("tok", nil)
	s.Revoke(nil)
	assert.ErrorIs(t, s.Err(), ErrLoggedOut)
}
