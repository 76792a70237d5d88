package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidSubject = errors.New("token has no valid subject")

type Authenticator interface {
	GenerateTokens(userID int64, role string) (string, string, error)
	ValidateAccessToken(token string) (*jwt.Token, error)
	ValidateRefreshToken(token string) (*jwt.Token, error)
}

// SubjectID extracts the numeric user id from the "sub" claim.
func SubjectID(token *jwt.Token) (int64, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidSubject
	}
	// numbers decode as float64 from MapClaims
	switch sub := claims["sub"].(type) {
	case float64:
		if sub <= 0 || sub != float64(int64(sub)) {
			return 0, ErrInvalidSubject
		}
		return int64(sub), nil
	default:
		return 0, ErrInvalidSubject
	}
}
