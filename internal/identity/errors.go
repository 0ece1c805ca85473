package identity

import "errors"

var (
	// ErrUnauthorized covers every credential failure: unknown email, wrong
	// password, inactive account, stale refresh hash. Callers surface it with a
	// generic message so the failing check is not disclosed.
	ErrUnauthorized = errors.New("identity: unauthorized")

	// ErrInvalidToken indicates a bearer token failed signature, expiry or
	// class validation.
	ErrInvalidToken = errors.New("identity: invalid token")

	ErrForbidden    = errors.New("identity: forbidden")
	ErrNotFound     = errors.New("identity: not found")
	ErrConflict     = errors.New("identity: resource conflict")
	ErrInvalidInput = errors.New("identity: invalid input")
)
