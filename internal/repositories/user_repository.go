package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskbuddy/internal/models"
)

type UserRepository interface {
	GetOrCreate(ctx context.Context, id string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)

	// verification
	SetVerifiedPhone(ctx context.Context, id, phone string) error
	GetByVerifiedPhone(ctx context.Context, phone string) (*models.User, error)
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `user_id, first_name, COALESCE(phone_number, ''), phone_verified, time_zone, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.FirstName, &u.PhoneNumber, &u.PhoneVerified, &u.TimeZone, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// GetOrCreate returns the profile, creating an empty one (zone UTC) on first use.
func (r *userRepository) GetOrCreate(ctx context.Context, id string) (*models.User, error) {
	const q = `
		INSERT INTO users (user_id, first_name, time_zone)
		VALUES ($1, '', 'UTC')
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.DB.ExecContext(ctx, q, id); err != nil {
		return nil, fmt.Errorf("user get-or-create: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return u, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	q := `
		UPDATE users SET
			first_name = COALESCE($2, first_name),
			time_zone  = COALESCE($3, time_zone),
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + userColumns
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, id, nullString(upd.FirstName), nullString(upd.TimeZone)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return u, nil
}

// SetVerifiedPhone attaches a verified number to the user and detaches it
// from anyone else who had it, so inbound SMS maps to one account.
func (r *userRepository) SetVerifiedPhone(ctx context.Context, id, phone string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET phone_number=NULL, phone_verified=FALSE, updated_at=NOW()
		 WHERE phone_number=$1 AND user_id<>$2`, phone, id); err != nil {
		return fmt.Errorf("release phone: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE users SET phone_number=$1, phone_verified=TRUE, updated_at=NOW() WHERE user_id=$2`, phone, id)
	if err != nil {
		return fmt.Errorf("set phone: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

func (r *userRepository) GetByVerifiedPhone(ctx context.Context, phone string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE phone_number = $1 AND phone_verified = TRUE LIMIT 1`
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("phone %s: %w", phone, ErrNotFound)
		}
		return nil, err
	}
	return u, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
