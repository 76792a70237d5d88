package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

type Store interface {
	GetByID(context.Context, int64) (*User, error)
	GetByEmail(context.Context, string) (*User, error)
	Create(ctx context.Context, user *User) error
	Delete(context.Context, int64) error
	UpdateDetails(ctx context.Context, userID int64, d DetailsUpdate) (*User, error)
	SetAvatar(ctx context.Context, userID int64, url string) error
	SetOTP(ctx context.Context, userID int64, otpHash string, expiry time.Time) error
	RecordFailedOTP(ctx context.Context, userID int64, maxAttempts int) (locked bool, err error)
	MarkEmailVerified(ctx context.Context, userID int64) error
	AllowPasswordReset(ctx context.Context, userID int64, until time.Time) error
	UpdatePassword(ctx context.Context, userID int64, hash []byte) error
	RecordLogin(ctx context.Context, userID int64, refreshToken string, at time.Time) error
	RotateRefreshToken(ctx context.Context, userID int64, oldToken, newToken string) error
	DeleteRefreshToken(ctx context.Context, userID int64) error
	PurgeExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}

type Repository struct {
	db dbx.Querier
}

func NewRepository(db dbx.Querier) *Repository {
	return &Repository{db: db}
}

const userColumns = `
	id, name, email, password, avatar, mobile, verify_email, last_login_date,
	status, role, otp, otp_expiry, otp_attempts, reset_allowed_until, refresh_token, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Password.hash,
		&u.Avatar,
		&u.Mobile,
		&u.VerifyEmail,
		&u.LastLoginDate,
		&u.Status,
		&u.Role,
		&u.OTP,
		&u.OTPExpiry,
		&u.OTPAttempts,
		&u.ResetAllowedUntil,
		&u.RefreshToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Repository) GetByID(ctx context.Context, userID int64) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// Create inserts user together with its pending OTP and fills in the
// generated columns.
func (r *Repository) Create(ctx context.Context, user *User) error {
	query := `
	  INSERT INTO users (name, email, password, mobile, status, role, otp, otp_expiry)
	  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	  RETURNING id, avatar, verify_email, created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if user.Status == "" {
		user.Status = StatusActive
	}
	if user.Role == "" {
		user.Role = RoleUser
	}

	err := r.db.QueryRow(ctx, query,
		user.Name, user.Email, user.Password.hash, user.Mobile, user.Status, user.Role, user.OTP, user.OTPExpiry,
	).Scan(&user.ID, &user.Avatar, &user.VerifyEmail, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, userID int64) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
}

// UpdateDetails applies the supplied profile fields. A new email drops the
// verified flag.
func (r *Repository) UpdateDetails(ctx context.Context, userID int64, d DetailsUpdate) (*User, error) {
	if d.Empty() {
		return nil, ErrNoFields
	}

	setClauses := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if d.Name != nil {
		add("name", *d.Name)
	}
	if d.Mobile != nil {
		add("mobile", *d.Mobile)
	}
	if d.Email != nil {
		add("email", *d.Email)
		setClauses = append(setClauses, fmt.Sprintf("verify_email = (email = $%d AND verify_email)", len(args)))
	}
	args = append(args, userID)

	query := fmt.Sprintf(`UPDATE users SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), len(args), userColumns)

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	u, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrNotFound
		case dbx.IsUniqueViolation(err):
			return nil, ErrDuplicateEmail
		default:
			return nil, fmt.Errorf("update user details: %w", err)
		}
	}
	return u, nil
}

func (r *Repository) SetAvatar(ctx context.Context, userID int64, url string) error {
	return r.exec(ctx, `UPDATE users SET avatar = $1, updated_at = NOW() WHERE id = $2`, url, userID)
}

func (r *Repository) SetOTP(ctx context.Context, userID int64, otpHash string, expiry time.Time) error {
	return r.exec(ctx,
		`UPDATE users SET otp = $1, otp_expiry = $2, otp_attempts = 0, reset_allowed_until = NULL, updated_at = NOW() WHERE id = $3`,
		otpHash, expiry, userID)
}

// RecordFailedOTP counts a wrong guess against the pending code and drops
// the code once maxAttempts is reached. locked is true when no code is left.
func (r *Repository) RecordFailedOTP(ctx context.Context, userID int64, maxAttempts int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var locked bool
	err := r.db.QueryRow(ctx, `
	  UPDATE users SET
	    otp_attempts = otp_attempts + 1,
	    otp = CASE WHEN otp_attempts + 1 >= $2 THEN NULL ELSE otp END,
	    otp_expiry = CASE WHEN otp_attempts + 1 >= $2 THEN NULL ELSE otp_expiry END,
	    updated_at = NOW()
	  WHERE id = $1 AND otp IS NOT NULL
	  RETURNING otp IS NULL
	`, userID, maxAttempts).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return false, fmt.Errorf("record failed otp: %w", err)
	}
	return locked, nil
}

func (r *Repository) MarkEmailVerified(ctx context.Context, userID int64) error {
	return r.exec(ctx,
		`UPDATE users SET verify_email = TRUE, otp = NULL, otp_expiry = NULL, otp_attempts = 0, updated_at = NOW() WHERE id = $1`,
		userID)
}

// AllowPasswordReset consumes the pending OTP and opens the reset window.
func (r *Repository) AllowPasswordReset(ctx context.Context, userID int64, until time.Time) error {
	return r.exec(ctx,
		`UPDATE users SET otp = NULL, otp_expiry = NULL, otp_attempts = 0, reset_allowed_until = $1, updated_at = NOW() WHERE id = $2`,
		until, userID)
}

// UpdatePassword also closes the reset window and revokes the session.
func (r *Repository) UpdatePassword(ctx context.Context, userID int64, hash []byte) error {
	return r.exec(ctx,
		`UPDATE users SET password = $1, reset_allowed_until = NULL, refresh_token = NULL, updated_at = NOW() WHERE id = $2`,
		hash, userID)
}

func (r *Repository) RecordLogin(ctx context.Context, userID int64, refreshToken string, at time.Time) error {
	return r.exec(ctx,
		`UPDATE users SET refresh_token = $1, last_login_date = $2, updated_at = NOW() WHERE id = $3`,
		refreshToken, at, userID)
}

// RotateRefreshToken swaps oldToken for newToken in one statement so a
// token can be exchanged only once.
func (r *Repository) RotateRefreshToken(ctx context.Context, userID int64, oldToken, newToken string) error {
	err := r.exec(ctx,
		`UPDATE users SET refresh_token = $1 WHERE id = $2 AND refresh_token = $3`,
		newToken, userID, oldToken)
	if errors.Is(err, ErrNotFound) {
		return ErrStaleRefreshToken
	}
	return err
}

func (r *Repository) DeleteRefreshToken(ctx context.Context, userID int64) error {
	return r.exec(ctx, `UPDATE users SET refresh_token = NULL WHERE id = $1`, userID)
}

// PurgeExpiredOTPs clears codes and reset windows that ran out before now
// and reports how many users were touched.
func (r *Repository) PurgeExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
	  UPDATE users SET
	    otp = CASE WHEN otp_expiry < $1 THEN NULL ELSE otp END,
	    otp_expiry = CASE WHEN otp_expiry < $1 THEN NULL ELSE otp_expiry END,
	    reset_allowed_until = CASE WHEN reset_allowed_until < $1 THEN NULL ELSE reset_allowed_until END
	  WHERE otp_expiry < $1 OR reset_allowed_until < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired otps: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
