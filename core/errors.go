package core

import "errors"

// Validation errors. Callers match them with errors.Is; adapters and
// services wrap them with context.
var (
	ErrInvalidUser     = errors.New("invalid user id")
	ErrInvalidAmount   = errors.New("xp amount must be positive")
	ErrUnknownBadge    = errors.New("unknown badge")
	ErrInvalidActivity = errors.New("unknown activity")
	ErrNotFound        = errors.New("not found")
)

// IsValidation reports whether err stems from bad caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidUser) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnknownBadge) ||
		errors.Is(err, ErrInvalidActivity)
}
