package sessions

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry returns the exp claim of a JWT access token. Tokens that are
// not JWTs, or carry no exp claim, have no known expiry.
func TokenExpiry(rawToken string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func tokenExpired(rawToken string, now time.Time) bool {
	exp, ok := TokenExpiry(rawToken)
	return ok && !now.Before(exp)
}
