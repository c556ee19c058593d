package domain

import "errors"

// Sentinel errors for the budget cache.
var (
	// ErrAccountNotFound signals a lookup for an account the local cache
	// does not hold.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidKey signals a malformed account key.
	ErrInvalidKey = errors.New("invalid account key")
	// ErrMalformedRecord signals a canonical account record missing
	// required fields.
	ErrMalformedRecord = errors.New("malformed account record")
)
