package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/dklatt/gatehouse/internal/session"
	pkghttp "github.com/dklatt/gatehouse/pkg/http"
)

// CSRFProtection validates CSRF tokens on state-changing requests. The
// expected token lives in the session, so a forged cross-site request
// cannot know it; the client echoes it back in the X-CSRF-Token header
// (or the csrf_token cookie, for double-submit clients). Sessions without
// a token, such as pre-login sessions, carry nothing to protect and pass.
func CSRFProtection(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			sess := session.FromContext(r)
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}

			expected, ok := session.CSRFToken(sess)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get("X-CSRF-Token")
			if got == "" {
				if cookie, err := r.Cookie("csrf_token"); err == nil {
					got = cookie.Value
				}
			}

			if got == "" {
				logger.Warn("CSRF token missing in request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				pkghttp.WriteForbidden(w, "CSRF token missing")
				return
			}

			if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				logger.Warn("CSRF token validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				pkghttp.WriteForbidden(w, "CSRF token invalid")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
