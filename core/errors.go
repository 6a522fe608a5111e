package core

import "errors"

// Error categories. Every error returned by the service layer wraps exactly one of these.
var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("authentication failed")
	ErrStorage        = errors.New("storage unavailable")
)

// Internal causes. They are joined to a category and never shown to clients.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrWrongTokenKind     = errors.New("unexpected token kind")
	ErrSessionRevoked     = errors.New("refresh session is not active")
	ErrPrincipalNotFound  = errors.New("principal not found")
	ErrPrincipalExists    = errors.New("principal already exists")
)
