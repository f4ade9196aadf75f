package services

import "errors"

// Sentinel errors the transport layer translates to API responses.
var (
	ErrSessionNotFound = errors.New("import session not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidSource   = errors.New("unknown data source")
	ErrInvalidTimezone = errors.New("unknown timezone")
	ErrInvalidMode     = errors.New("unknown import mode")
	ErrEmptyFile       = errors.New("uploaded file is empty")
)
