package middlewares

import (
	"strconv"
	"staylog/src/types"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// IssueToken signs an HS256 token for userID. The user service owns login;
// this is used for local runs and tests.
func IssueToken(secret []byte, userID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &types.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
