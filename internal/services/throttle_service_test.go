package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dklatt/gatehouse/internal/models"
)

// mockFailedLoginRepo implements FailedLoginRepository in memory
type mockFailedLoginRepo struct {
	records map[string]*models.FailedLogin
}

func newMockFailedLoginRepo() *mockFailedLoginRepo {
	return &mockFailedLoginRepo{records: make(map[string]*models.FailedLogin)}
}

func (m *mockFailedLoginRepo) Find(ctx context.Context, username string) (*models.FailedLogin, error) {
	record, ok := m.records[username]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (m *mockFailedLoginRepo) Upsert(ctx context.Context, username string, attemptedAt time.Time) (int, error) {
	record, ok := m.records[username]
	if !ok {
		m.records[username] = &models.FailedLogin{Username: username, Count: 1, LastAttemptAt: attemptedAt}
		return 1, nil
	}
	record.Count++
	record.LastAttemptAt = attemptedAt
	return record.Count, nil
}

func (m *mockFailedLoginRepo) Delete(ctx context.Context, username string) error {
	delete(m.records, username)
	return nil
}

func testThrottleService(repo FailedLoginRepository, at time.Time) *ThrottleService {
	s := NewThrottleService(repo, DefaultThrottleConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return at }
	return s
}

func TestThrottleServiceRecordFailure(t *testing.T) {
	repo := newMockFailedLoginRepo()
	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(30 * time.Second)
	ctx := context.Background()

	svc := testThrottleService(repo, t0)
	count, err := svc.RecordFailure(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	svc.now = func() time.Time { return t1 }
	count, err = svc.RecordFailure(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	record := repo.records["alice"]
	require.NotNil(t, record)
	assert.Equal(t, 2, record.Count)
	assert.Equal(t, t1, record.LastAttemptAt, "last attempt time must match the second failure")
}

func TestThrottleServiceMinutesRemaining(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		count       int
		elapsed     time.Duration
		wantMinutes int
		wantCleared bool
	}{
		{name: "no record", count: 0, wantMinutes: 0},
		{name: "below threshold", count: 4, elapsed: 0, wantMinutes: 0},
		{name: "at threshold, immediately", count: 5, elapsed: 0, wantMinutes: 5},
		{name: "at threshold, partway through", count: 5, elapsed: 90 * time.Second, wantMinutes: 4},
		{name: "over threshold, last minute", count: 7, elapsed: 299 * time.Second, wantMinutes: 1},
		{name: "window elapsed exactly", count: 5, elapsed: 300 * time.Second, wantMinutes: 0, wantCleared: true},
		{name: "window long past", count: 5, elapsed: time.Hour, wantMinutes: 0, wantCleared: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockFailedLoginRepo()
			if tt.count > 0 {
				repo.records["alice"] = &models.FailedLogin{
					Username:      "alice",
					Count:         tt.count,
					LastAttemptAt: t0,
				}
			}

			svc := testThrottleService(repo, t0.Add(tt.elapsed))
			minutes, err := svc.MinutesRemaining(context.Background(), "alice")
			require.NoError(t, err)
			assert.Equal(t, tt.wantMinutes, minutes)

			if tt.wantCleared {
				assert.NotContains(t, repo.records, "alice", "expired record must be deleted on read")
			}
		})
	}
}

func TestThrottleServiceLockoutLifecycle(t *testing.T) {
	repo := newMockFailedLoginRepo()
	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	svc := testThrottleService(repo, t0)

	// Five failures at t=0 lock the account.
	for i := 0; i < 5; i++ {
		_, err := svc.RecordFailure(ctx, "alice")
		require.NoError(t, err)
	}

	minutes, err := svc.MinutesRemaining(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, minutes)

	// At t=301 the lockout has expired and the record is cleared.
	svc.now = func() time.Time { return t0.Add(301 * time.Second) }
	minutes, err = svc.MinutesRemaining(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, minutes)
	assert.NotContains(t, repo.records, "alice")

	// A fresh failure afterwards starts a new count of 1.
	count, err := svc.RecordFailure(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestThrottleServiceLockoutMinutes(t *testing.T) {
	svc := testThrottleService(newMockFailedLoginRepo(), time.Now())
	assert.Equal(t, 5, svc.LockoutMinutes())
	assert.Equal(t, 5, svc.Threshold())
}
