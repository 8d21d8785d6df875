// Package apperr holds the error taxonomy shared by repositories, services and handlers.
package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("note does not belong to user")
	ErrConflict           = errors.New("conflict")
	ErrLocked             = errors.New("note is locked")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrStoreIO            = errors.New("store i/o error")

	// AI proxy failures.
	ErrConfiguration = errors.New("ai service is not configured")
	ErrRateLimited   = errors.New("rate limits exceeded, please try again later")
	ErrQuotaExceeded = errors.New("payment required, please add funds to your AI workspace")
	ErrUpstream      = errors.New("ai gateway error")
	ErrInvalidAction = errors.New("invalid action")
)
