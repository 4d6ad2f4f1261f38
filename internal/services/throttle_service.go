package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dklatt/gatehouse/internal/models"
)

// FailedLoginRepository defines the persistence interface for per-username
// failed-login records
type FailedLoginRepository interface {
	Find(ctx context.Context, username string) (*models.FailedLogin, error)
	Upsert(ctx context.Context, username string, attemptedAt time.Time) (int, error)
	Delete(ctx context.Context, username string) error
}

// ThrottleConfig holds the lockout policy for repeated failed logins
type ThrottleConfig struct {
	Threshold int           // consecutive failures before lockout
	Lockout   time.Duration // lockout window measured from the last failure
}

// DefaultThrottleConfig returns the standard policy: lock an account for
// five minutes after five consecutive failures.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		Threshold: 5,
		Lockout:   5 * time.Minute,
	}
}

// ThrottleService tracks failed login attempts per username and answers
// whether an account is currently locked out.
type ThrottleService struct {
	repo   FailedLoginRepository
	config ThrottleConfig
	logger *slog.Logger
	now    func() time.Time // injectable for tests
}

// NewThrottleService creates a new ThrottleService
func NewThrottleService(repo FailedLoginRepository, config ThrottleConfig, logger *slog.Logger) *ThrottleService {
	return &ThrottleService{
		repo:   repo,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// RecordFailure persists one failed attempt for username and returns the
// consecutive-failure count after the write. The increment is atomic in
// the store, so concurrent failures never undercount.
func (s *ThrottleService) RecordFailure(ctx context.Context, username string) (int, error) {
	count, err := s.repo.Upsert(ctx, username, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to record failed login: %w", err)
	}

	if count == s.config.Threshold {
		s.logger.Warn("account reached lockout threshold",
			slog.String("username", username),
			slog.Int("failed_attempts", count),
			slog.Duration("lockout", s.config.Lockout))
	}

	return count, nil
}

// MinutesRemaining returns how many whole minutes of lockout remain for
// username, rounded up, or 0 when the account is not locked. A record
// whose lockout window has elapsed is deleted on this read — records
// expire lazily when next queried, not on a timer.
func (s *ThrottleService) MinutesRemaining(ctx context.Context, username string) (int, error) {
	record, err := s.repo.Find(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("failed to look up failed logins: %w", err)
	}
	if record == nil || record.Count < s.config.Threshold {
		return 0, nil
	}

	sinceLastAttempt := s.now().Sub(record.LastAttemptAt)
	remaining := s.config.Lockout - sinceLastAttempt
	if remaining <= 0 {
		if err := s.repo.Delete(ctx, username); err != nil {
			return 0, fmt.Errorf("failed to reset failed logins: %w", err)
		}
		return 0, nil
	}

	return int(math.Ceil(remaining.Seconds() / 60)), nil
}

// Threshold exposes the configured lockout threshold.
func (s *ThrottleService) Threshold() int {
	return s.config.Threshold
}

// LockoutMinutes exposes the lockout window in whole minutes, rounded up.
func (s *ThrottleService) LockoutMinutes() int {
	return int(math.Ceil(s.config.Lockout.Minutes()))
}
