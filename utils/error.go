package utils

import "errors"

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingSecret = errors.New("API_SECRET is not set")
)
