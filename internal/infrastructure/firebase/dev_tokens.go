package firebase

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"supportdesk/internal/domain/entity"
	"supportdesk/pkg/errors"
)

type devClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateDevToken mints an HS256 token for local development. Only wired
// into the router when the environment is development.
func (a *AuthClient) GenerateDevToken(userID, role string) (string, error) {
	if a.devSecret == "" {
		return "", errors.Internal("dev token secret not configured", nil)
	}

	claims := &devClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(a.devExpiry) * time.Second)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.devSecret))
}

func (a *AuthClient) verifyDevToken(tokenStr string) (entity.Identity, error) {
	claims := &devClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(a.devSecret), nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return entity.Identity{}, errors.Unauthorized("Invalid or expired token", err)
	}

	return entity.Identity{ID: claims.Subject, Role: claims.Role}, nil
}
