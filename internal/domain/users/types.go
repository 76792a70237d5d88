package users

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicateEmail    = errors.New("a user with that email already exists")
	ErrInvalidOTP        = errors.New("invalid verification code")
	ErrOTPExpired        = errors.New("verification code has expired")
	ErrOTPLocked         = errors.New("too many wrong codes, request a new one")
	ErrStaleRefreshToken = errors.New("refresh token was already used")
	ErrResetNotAllowed   = errors.New("password reset was not verified or has expired")
	ErrNoFields          = errors.New("no fields to update")
	QueryTimeoutDuration = time.Second * 5
)

type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
	StatusBanned   Status = "Banned"
)

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

type User struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Password          password   `json:"-"`
	Avatar            string     `json:"avatar"`
	Mobile            *string    `json:"mobile"`
	VerifyEmail       bool       `json:"verify_email"`
	LastLoginDate     *time.Time `json:"last_login_date"`
	Status            Status     `json:"status"`
	Role              Role       `json:"role"`
	OTP               *string    `json:"-"`
	OTPExpiry         *time.Time `json:"-"`
	OTPAttempts       int        `json:"-"`
	ResetAllowedUntil *time.Time `json:"-"`
	RefreshToken      *string    `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// DetailsUpdate carries the self-service profile fields; nil means unchanged.
type DetailsUpdate struct {
	Name   *string
	Email  *string
	Mobile *string
}

func (d DetailsUpdate) Empty() bool {
	return d.Name == nil && d.Email == nil && d.Mobile == nil
}

// password keeps the plaintext only for the lifetime of the request.
type password struct {
	text *string
	hash []byte
}

func (p *password) Set(text string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(text), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	p.text = &text
	p.hash = hash

	return nil
}

func (p *password) Compare(text string) error {
	return bcrypt.CompareHashAndPassword(p.hash, []byte(text))
}

func (p *password) Hash() []byte {
	return p.hash
}

// SetHash loads an already computed bcrypt hash.
func (p *password) SetHash(hash []byte) {
	p.text = nil
	p.hash = hash
}
