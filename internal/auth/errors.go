package auth

import "errors"

// Domain errors for the auth package.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrNoSecret     = errors.New("auth: signing secret is empty")
)
