package db

import "errors"

// Domain-level database error sentinels.
var (
	// Notification errors
	ErrInvalidNotification = errors.New("invalid change notification")
)
