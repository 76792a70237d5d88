// Package userstest provides an in-memory users.Store for tests.
package userstest

import (
	"context"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain/users"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*users.User
}

func New() *Store {
	return &Store{rows: map[int64]*users.User{}}
}

// Seed stores u with the given plain password and returns the stored copy.
func (s *Store) Seed(u *users.User, plain string) *users.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *u
	if err := cp.Password.Set(plain); err != nil {
		panic(err)
	}
	if cp.ID == 0 {
		s.nextID++
		cp.ID = s.nextID
	} else if cp.ID > s.nextID {
		s.nextID = cp.ID
	}
	if cp.Status == "" {
		cp.Status = users.StatusActive
	}
	if cp.Role == "" {
		cp.Role = users.RoleUser
	}
	s.rows[cp.ID] = &cp
	out := cp
	return &out
}

// Peek returns a copy of the stored user, or nil.
func (s *Store) Peek(id int64) *users.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.rows[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *Store) GetByID(_ context.Context, id int64) (*users.User, error) {
	if u := s.Peek(id); u != nil {
		return u, nil
	}
	return nil, users.ErrNotFound
}

func (s *Store) GetByEmail(_ context.Context, email string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.rows {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, users.ErrNotFound
}

func (s *Store) Create(_ context.Context, user *users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.rows {
		if strings.EqualFold(u.Email, user.Email) {
			return users.ErrDuplicateEmail
		}
	}
	s.nextID++
	now := time.Now()
	user.ID = s.nextID
	user.CreatedAt, user.UpdatedAt = now, now
	if user.Status == "" {
		user.Status = users.StatusActive
	}
	if user.Role == "" {
		user.Role = users.RoleUser
	}
	cp := *user
	s.rows[user.ID] = &cp
	return nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return users.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *Store) UpdateDetails(_ context.Context, id int64, d users.DetailsUpdate) (*users.User, error) {
	if d.Empty() {
		return nil, users.ErrNoFields
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.rows[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	if d.Email != nil {
		for oid, o := range s.rows {
			if oid != id && strings.EqualFold(o.Email, *d.Email) {
				return nil, users.ErrDuplicateEmail
			}
		}
		if !strings.EqualFold(u.Email, *d.Email) {
			u.VerifyEmail = false
		}
		u.Email = *d.Email
	}
	if d.Name != nil {
		u.Name = *d.Name
	}
	if d.Mobile != nil {
		m := *d.Mobile
		u.Mobile = &m
	}
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (s *Store) update(id int64, fn func(u *users.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.rows[id]
	if !ok {
		return users.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

func (s *Store) SetAvatar(_ context.Context, id int64, url string) error {
	return s.update(id, func(u *users.User) { u.Avatar = url })
}

func (s *Store) SetOTP(_ context.Context, id int64, otpHash string, expiry time.Time) error {
	return s.update(id, func(u *users.User) {
		u.OTP = &otpHash
		u.OTPExpiry = &expiry
		u.OTPAttempts = 0
		u.ResetAllowedUntil = nil
	})
}

func (s *Store) RecordFailedOTP(_ context.Context, id int64, maxAttempts int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.rows[id]
	if !ok || u.OTP == nil {
		return true, nil
	}
	u.OTPAttempts++
	if u.OTPAttempts >= maxAttempts {
		u.OTP, u.OTPExpiry = nil, nil
	}
	u.UpdatedAt = time.Now()
	return u.OTP == nil, nil
}

func (s *Store) MarkEmailVerified(_ context.Context, id int64) error {
	return s.update(id, func(u *users.User) {
		u.VerifyEmail = true
		u.OTP, u.OTPExpiry = nil, nil
		u.OTPAttempts = 0
	})
}

func (s *Store) AllowPasswordReset(_ context.Context, id int64, until time.Time) error {
	return s.update(id, func(u *users.User) {
		u.ResetAllowedUntil = &until
		u.OTP, u.OTPExpiry = nil, nil
		u.OTPAttempts = 0
	})
}

func (s *Store) UpdatePassword(_ context.Context, id int64, hash []byte) error {
	return s.update(id, func(u *users.User) {
		u.Password.SetHash(hash)
		u.ResetAllowedUntil = nil
		u.RefreshToken = nil
	})
}

func (s *Store) RecordLogin(_ context.Context, id int64, refreshToken string, at time.Time) error {
	return s.update(id, func(u *users.User) {
		u.LastLoginDate = &at
		u.RefreshToken = &refreshToken
	})
}

func (s *Store) RotateRefreshToken(_ context.Context, id int64, oldToken, newToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.rows[id]
	if !ok || u.RefreshToken == nil || *u.RefreshToken != oldToken {
		return users.ErrStaleRefreshToken
	}
	u.RefreshToken = &newToken
	return nil
}

func (s *Store) DeleteRefreshToken(_ context.Context, id int64) error {
	return s.update(id, func(u *users.User) { u.RefreshToken = nil })
}

func (s *Store) PurgeExpiredOTPs(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, u := range s.rows {
		touched := false
		if u.OTPExpiry != nil && u.OTPExpiry.Before(now) {
			u.OTP, u.OTPExpiry = nil, nil
			touched = true
		}
		if u.ResetAllowedUntil != nil && u.ResetAllowedUntil.Before(now) {
			u.ResetAllowedUntil = nil
			touched = true
		}
		if touched {
			n++
		}
	}
	return n, nil
}
