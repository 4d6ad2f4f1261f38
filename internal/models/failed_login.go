package models

import "time"

// FailedLogin tracks consecutive failed login attempts for one username.
// One row per username; Count is always >= 1 while the row exists.
type FailedLogin struct {
	Username      string    `db:"username"`
	Count         int       `db:"count"`
	LastAttemptAt time.Time `db:"last_attempt_at"`
}
