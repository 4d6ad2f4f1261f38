package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestManagerLogin(t *testing.T) {
	m := testManager()
	s := newMemoryStore()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	err := m.Login(context.Background(), s, "user-1", testUserAgent, now)
	require.NoError(t, err)

	userID, ok := UserID(s)
	assert.True(t, ok)
	assert.Equal(t, "user-1", userID)

	lastLogin, ok := LastLogin(s)
	assert.True(t, ok)
	assert.Equal(t, now.Unix(), lastLogin.Unix())

	userAgent, ok := UserAgent(s)
	assert.True(t, ok)
	assert.Equal(t, testUserAgent, userAgent)

	assert.Equal(t, 1, s.saves, "login should persist the session")
}

func TestManagerLoginRegeneratesIdentityFirst(t *testing.T) {
	m := testManager()
	s := newMemoryStore()
	originalID := s.ID()

	err := m.Login(context.Background(), s, "user-1", testUserAgent, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, s.regenerations, "login must regenerate the session identity")
	assert.NotEqual(t, originalID, s.ID())
	assert.False(t, s.fieldsSetBeforeRegenerate,
		"no session field may be written before the identity is regenerated")
}

func TestManagerLoginThenIsLoggedIn(t *testing.T) {
	m := testManager()
	s := newMemoryStore()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.Login(context.Background(), s, "user-1", testUserAgent, now))

	assert.True(t, m.IsLoggedIn(s, testUserAgent, now),
		"immediately after login the session is logged in")
	assert.False(t, m.IsLoggedIn(s, "curl/8.5.0", now),
		"a different user-agent is not logged in")
	assert.False(t, m.IsLoggedIn(s, testUserAgent, now.Add(RecencyWindow+time.Second)),
		"a stale login is not logged in")
}

func TestManagerLogout(t *testing.T) {
	m := testManager()
	s := newMemoryStore()
	now := time.Now()

	require.NoError(t, m.Login(context.Background(), s, "user-1", testUserAgent, now))
	require.NoError(t, m.Logout(context.Background(), s))

	_, ok := UserID(s)
	assert.False(t, ok, "user_id must be gone after logout")
	assert.True(t, s.destroyed, "logout must destroy the session")
	assert.False(t, m.IsLoggedIn(s, testUserAgent, now))
}

func TestManagerIsLoggedInWithoutUserID(t *testing.T) {
	m := testManager()
	s := newMemoryStore()
	now := time.Now()

	// Recency and fingerprint alone do not make a login; user_id is the
	// marker.
	seedLogin(s, "", now, testUserAgent)
	delete(s.values, keyUserID)

	assert.False(t, m.IsLoggedIn(s, testUserAgent, now))
}

func TestManagerDestroy(t *testing.T) {
	m := testManager()
	s := newMemoryStore()

	require.NoError(t, m.Login(context.Background(), s, "user-1", testUserAgent, time.Now()))
	require.NoError(t, m.Destroy(context.Background(), s))

	assert.True(t, s.destroyed)
	assert.Empty(t, s.values)
}
