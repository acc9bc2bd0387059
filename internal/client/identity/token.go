package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/secretvault/internal/client/models"
)

var errInvalidToken = errors.New("invalid token")

// Claims is the payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID      string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
}

func generateToken(id models.Identity, secret []byte, now time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   id.UID,
		},
		UserID:      id.UID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
	})
	return token.SignedString(secret)
}

func parseToken(tokenString string, secret []byte, now time.Time) (models.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		return models.Identity{}, err
	}
	if !token.Valid || claims.UserID == "" {
		return models.Identity{}, errInvalidToken
	}
	return models.Identity{UID: claims.UserID, Email: claims.Email, DisplayName: claims.DisplayName}, nil
}
