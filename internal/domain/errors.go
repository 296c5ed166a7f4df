package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStatusConflict    = errors.New("status changed concurrently")
	ErrQuotaExceeded     = errors.New("monthly video quota exceeded")
	ErrNoConnection      = errors.New("no active platform connection")
	ErrProviderFailure   = errors.New("provider failure")
	ErrNotEditable       = errors.New("video not editable in current status")
	ErrDuplicateJob      = errors.New("active publish job already exists")
)
