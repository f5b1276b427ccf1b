package models

import "errors"

// Storage level uniqueness violations.
var (
	ErrDuplicateEmail    = errors.New("email violates unique constraint")
	ErrDuplicateUsername = errors.New("username violates unique constraint")
)
