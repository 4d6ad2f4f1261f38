package session

import "time"

// RecencyWindow is how long after login a session is still considered
// recent. Sessions older than this fail validation and force a re-login.
const RecencyWindow = 24 * time.Hour

// LastLoginIsRecent reports whether the session's login happened within
// the recency window. A session with no recorded login time fails.
func LastLoginIsRecent(s Store, now time.Time) bool {
	lastLogin, ok := LastLogin(s)
	if !ok {
		return false
	}
	return !lastLogin.Add(RecencyWindow).Before(now)
}

// UserAgentMatches reports whether the request's user-agent matches the
// fingerprint captured at login. Either side missing fails the check: the
// fingerprint is a weak hijacking signal, so absence invalidates rather
// than passes.
func UserAgentMatches(s Store, requestUserAgent string) bool {
	if requestUserAgent == "" {
		return false
	}
	storedUserAgent, ok := UserAgent(s)
	if !ok {
		return false
	}
	return storedUserAgent == requestUserAgent
}

// IsValid reports whether the session is still trustworthy: the login must
// be recent and the user-agent must match.
func IsValid(s Store, requestUserAgent string, now time.Time) bool {
	if !LastLoginIsRecent(s, now) {
		return false
	}
	if !UserAgentMatches(s, requestUserAgent) {
		return false
	}
	return true
}
