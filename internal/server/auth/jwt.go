// Package auth issues and verifies the short-lived tokens carried in upload
// targets. A token binds one file id to its declared size.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// UploadClaims are the claims of an upload token.
type UploadClaims struct {
	jwt.RegisteredClaims
	FileID string `json:"fid"`
	Size   int64  `json:"size"`
}

func GenerateUploadToken(fileID string, size int64, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, UploadClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		FileID: fileID,
		Size:   size,
	})

	return token.SignedString(secretKey)
}

// ParseUploadToken verifies the signature and expiry of tokenString and
// returns its claims.
func ParseUploadToken(tokenString string, secretKey []byte) (*UploadClaims, error) {
	claims := &UploadClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid || claims.FileID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
