package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dklatt/gatehouse/internal/database"
	"github.com/dklatt/gatehouse/internal/models"
)

// FailedLoginRepository handles database operations for per-username
// failed-login records
type FailedLoginRepository struct {
	db *database.DB
}

func NewFailedLoginRepository(db *database.DB) *FailedLoginRepository {
	return &FailedLoginRepository{db: db}
}

// Find returns the failed-login record for a username, or nil when no
// record exists.
func (r *FailedLoginRepository) Find(ctx context.Context, username string) (*models.FailedLogin, error) {
	query := `
		SELECT username, count, last_attempt_at FROM failed_logins
		WHERE username = $1
	`

	var record models.FailedLogin
	err := r.db.Pool.QueryRow(ctx, query, username).Scan(
		&record.Username,
		&record.Count,
		&record.LastAttemptAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// Upsert records a failure: inserts a fresh record with count=1, or
// atomically increments the existing count and refreshes the attempt time.
// The increment happens store-side, so concurrent failures for the same
// username never undercount. Returns the count after the write.
func (r *FailedLoginRepository) Upsert(ctx context.Context, username string, attemptedAt time.Time) (int, error) {
	query := `
		INSERT INTO failed_logins (username, count, last_attempt_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (username)
		DO UPDATE SET count = failed_logins.count + 1, last_attempt_at = $2
		RETURNING count
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, username, attemptedAt).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Delete removes the failed-login record for a username. Deleting an
// absent record is not an error.
func (r *FailedLoginRepository) Delete(ctx context.Context, username string) error {
	query := `DELETE FROM failed_logins WHERE username = $1`
	_, err := r.db.Pool.Exec(ctx, query, username)
	return err
}

// DeleteExpired removes records whose lockout window elapsed before the
// cutoff. Used by the background sweep; the read path lazily resets
// expired records on its own, so this only reclaims storage.
func (r *FailedLoginRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM failed_logins WHERE last_attempt_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
