package session

import (
	"context"
	"strconv"
	"time"
)

// Session field keys. user_id doubles as the logged-in flag: its presence
// means a login is active, and its value identifies the user.
const (
	keyUserID    = "user_id"
	keyLastLogin = "last_login"
	keyUserAgent = "user_agent"
	keyCSRFToken = "csrf_token"
)

// Store is a key-value session bound to one request. Get/Set/Unset operate
// on an in-memory view; Save persists pending writes; RegenerateID swaps
// the session identifier for a fresh one, discarding the old entry;
// Destroy tears the session down entirely.
type Store interface {
	ID() string
	Get(key string) (string, bool)
	Set(key, value string)
	Unset(key string)
	RegenerateID(ctx context.Context) error
	Destroy(ctx context.Context) error
	Save(ctx context.Context) error
}

// UserID returns the logged-in user's ID, if a login is active.
func UserID(s Store) (string, bool) {
	v, ok := s.Get(keyUserID)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// LastLogin returns the time the current login was established.
func LastLogin(s Store) (time.Time, bool) {
	v, ok := s.Get(keyLastLogin)
	if !ok || v == "" {
		return time.Time{}, false
	}
	epoch, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(epoch, 0), true
}

// UserAgent returns the user-agent fingerprint captured at login.
func UserAgent(s Store) (string, bool) {
	v, ok := s.Get(keyUserAgent)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// CSRFToken returns the CSRF token issued for this session.
func CSRFToken(s Store) (string, bool) {
	v, ok := s.Get(keyCSRFToken)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// SetCSRFToken stores a CSRF token in the session.
func SetCSRFToken(s Store, token string) {
	s.Set(keyCSRFToken, token)
}
