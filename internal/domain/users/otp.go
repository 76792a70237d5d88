package users

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

const (
	OTPLength      = 6
	OTPTTL         = 15 * time.Minute
	ResetWindowTTL = 10 * time.Minute
	// MaxOTPAttempts wrong guesses discard the pending code.
	MaxOTPAttempts = 5
)

// GenerateOTP returns a uniformly random numeric code of OTPLength digits.
func GenerateOTP() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPLength, n.Int64()), nil
}

// HashOTP is what gets stored; the plain code only travels by mail.
func HashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// CheckOTP validates code against the pending one on u. A wrong code is
// reported before an expired one.
func CheckOTP(u *User, code string, now time.Time) error {
	if u.OTP == nil || code == "" {
		return ErrInvalidOTP
	}
	if subtle.ConstantTimeCompare([]byte(*u.OTP), []byte(HashOTP(code))) != 1 {
		return ErrInvalidOTP
	}
	if u.OTPExpiry == nil || !now.Before(*u.OTPExpiry) {
		return ErrOTPExpired
	}
	return nil
}

// CanResetPassword reports whether a verified reset window is still open.
func CanResetPassword(u *User, now time.Time) bool {
	return u.ResetAllowedUntil != nil && now.Before(*u.ResetAllowedUntil)
}
