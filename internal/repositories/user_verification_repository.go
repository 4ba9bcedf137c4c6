package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskbuddy/internal/models"
)

type UserVerificationRepository struct {
	DB *sql.DB
}

func NewUserVerificationRepository(db *sql.DB) *UserVerificationRepository {
	return &UserVerificationRepository{DB: db}
}

// Create adds a verification record. Every send gets its own row.
func (r *UserVerificationRepository) Create(ctx context.Context, userID, phone, codeHash string, sentAt, expiresAt time.Time) (int64, error) {
	const q = `
		INSERT INTO user_verifications (user_id, phone_number, code_hash, sent_at, expires_at, confirmed, attempts)
		VALUES ($1, $2, $3, $4, $5, FALSE, 0)
		RETURNING id
	`
	var id int64
	if err := r.DB.QueryRowContext(ctx, q, userID, phone, codeHash, sentAt, expiresAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("user_verification create: %w", err)
	}
	return id, nil
}

// GetLatestByUserID returns the most recent send, nil when there is none.
func (r *UserVerificationRepository) GetLatestByUserID(ctx context.Context, userID string) (*models.UserVerification, error) {
	const q = `
		SELECT id, user_id, phone_number, code_hash, sent_at, expires_at, confirmed, attempts
		FROM user_verifications
		WHERE user_id = $1
		ORDER BY sent_at DESC
		LIMIT 1
	`
	var v models.UserVerification
	err := r.DB.QueryRowContext(ctx, q, userID).Scan(
		&v.ID, &v.UserID, &v.PhoneNumber, &v.CodeHash, &v.SentAt, &v.ExpiresAt, &v.Confirmed, &v.Attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("user_verification latest: %w", err)
	}
	return &v, nil
}

// CountRecentSends is used for resend throttling.
func (r *UserVerificationRepository) CountRecentSends(ctx context.Context, userID string, since time.Time) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM user_verifications
		WHERE user_id = $1 AND sent_at >= $2
	`
	var c int
	if err := r.DB.QueryRowContext(ctx, q, userID, since).Scan(&c); err != nil {
		return 0, fmt.Errorf("user_verification count recent: %w", err)
	}
	return c, nil
}

// IncrementAttempts bumps the counter and returns the new value.
func (r *UserVerificationRepository) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	const q = `
		UPDATE user_verifications
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`
	var attempts int
	if err := r.DB.QueryRowContext(ctx, q, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("user_verification increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *UserVerificationRepository) MarkConfirmed(ctx context.Context, id int64) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE user_verifications SET confirmed=TRUE WHERE id=$1`, id)
	return err
}

// ExpireNow kills the code immediately (after too many attempts).
func (r *UserVerificationRepository) ExpireNow(ctx context.Context, id int64) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE user_verifications SET expires_at = NOW() WHERE id=$1`, id)
	return err
}
