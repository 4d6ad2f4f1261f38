package background

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredRecordDeleter removes failed-login records older than the cutoff
type ExpiredRecordDeleter interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupManager periodically sweeps stale failed-login records from the
// database. Lockouts reset lazily when the account is next queried, so a
// record for a username nobody tries again would otherwise sit forever;
// the sweep is janitorial, not part of the lockout semantics.
type CleanupManager struct {
	failedLogins ExpiredRecordDeleter
	lockout      time.Duration
	logger       *slog.Logger
	interval     time.Duration
	stopCh       chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	failedLogins ExpiredRecordDeleter,
	lockout time.Duration,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		failedLogins: failedLogins,
		lockout:      lockout,
		logger:       logger,
		interval:     interval,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup removes failed-login records whose lockout window has elapsed
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-cm.lockout)
	rowsDeleted, err := cm.failedLogins.DeleteExpired(cleanupCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to sweep stale failed-login records", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		cm.logger.Info("stale failed-login records removed", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
