package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	pkghttp "github.com/dklatt/gatehouse/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const sessionContextKey contextKey = "session"

// Loader returns middleware that loads the request's session from the
// session cookie and injects it into the context. The session is saved
// again once the handler returns, so read-only requests still refresh the
// sliding TTL.
func Loader(client *redis.Client, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return loadSessions(func(r *http.Request) (Store, error) {
		sessionID, _ := GetSessionCookie(r)
		return LoadRedisStore(r.Context(), client, sessionID, ttl)
	}, logger)
}

func loadSessions(load func(*http.Request) (Store, error), logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store, err := load(r)
			if err != nil {
				logger.Error("failed to load session", slog.Any("error", err))
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), store)))

			if err := store.Save(r.Context()); err != nil {
				logger.Error("failed to save session", slog.Any("error", err))
			}
		})
	}
}

// NewContext returns a context carrying the given session store
func NewContext(ctx context.Context, s Store) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// FromContext extracts the request's session from the context. Returns nil
// when the Loader middleware did not run.
func FromContext(r *http.Request) Store {
	s, ok := r.Context().Value(sessionContextKey).(Store)
	if !ok {
		return nil
	}
	return s
}

// RequireLogin guards a route behind a valid login session. When the
// session fails validation it is destroyed before the 401 is written, so
// downstream code must never assume the session still exists after a
// rejection.
func RequireLogin(m *Manager, cookieCfg CookieConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := FromContext(r)
			if s == nil {
				pkghttp.WriteUnauthorized(w, "Login required")
				return
			}

			requestUserAgent := pkghttp.ExtractUserAgent(r)
			if !m.IsLoggedIn(s, requestUserAgent, time.Now()) {
				if err := m.Destroy(r.Context(), s); err != nil {
					logger.Error("failed to destroy invalid session", slog.Any("error", err))
				}
				ClearSessionCookie(w, cookieCfg)
				ClearCSRFCookie(w, cookieCfg)
				pkghttp.WriteUnauthorized(w, "Login required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
