package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// TriggerClaims authorize HTTP report triggers. Role must be "reports".
type TriggerClaims struct {
	Role string `json:"role"`
	jwt.StandardClaims
}

func jwtSecret() []byte {
	return []byte(os.Getenv("API_SECRET"))
}

func JwtGenerate(subject string, role string, lifespan time.Duration) (string, error) {
	if len(jwtSecret()) == 0 {
		return "", ErrMissingSecret
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &TriggerClaims{
		Role: role,
		StandardClaims: jwt.StandardClaims{
			Subject:   subject,
			ExpiresAt: time.Now().Add(lifespan).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	})
	return t.SignedString(jwtSecret())
}

func JwtValidate(token string) (*TriggerClaims, error) {
	if len(jwtSecret()) == 0 {
		return nil, ErrMissingSecret
	}
	parsed, err := jwt.ParseWithClaims(token, &TriggerClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return jwtSecret(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*TriggerClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
