package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Manager owns the login session lifecycle: establishing a session at
// login, tearing it down at logout or on failed validation, and answering
// whether a request carries a live login.
type Manager struct {
	logger *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{logger: logger}
}

// Login establishes a login session for userID. The session identity is
// regenerated before any field is written, so a pre-set identifier can
// never survive into the authenticated session; if the process dies
// between regeneration and Save, the next read finds no user_id and
// treats the session as logged out.
func (m *Manager) Login(ctx context.Context, s Store, userID, requestUserAgent string, now time.Time) error {
	if err := s.RegenerateID(ctx); err != nil {
		return fmt.Errorf("failed to regenerate session identity: %w", err)
	}

	s.Set(keyUserID, userID)
	s.Set(keyLastLogin, strconv.FormatInt(now.Unix(), 10))
	s.Set(keyUserAgent, requestUserAgent)

	if err := s.Save(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	m.logger.Info("login session established", slog.String("user_id", userID))
	return nil
}

// Logout clears the login marker and destroys the session entirely.
func (m *Manager) Logout(ctx context.Context, s Store) error {
	s.Unset(keyUserID)
	return m.Destroy(ctx, s)
}

// Destroy unconditionally tears the session down. Used by Logout and by
// failed-validation paths.
func (m *Manager) Destroy(ctx context.Context, s Store) error {
	if err := s.Destroy(ctx); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// IsLoggedIn reports whether the session carries a live login: user_id must
// be present and the session must still validate against the request.
func (m *Manager) IsLoggedIn(s Store, requestUserAgent string, now time.Time) bool {
	if _, ok := UserID(s); !ok {
		return false
	}
	return IsValid(s, requestUserAgent, now)
}
