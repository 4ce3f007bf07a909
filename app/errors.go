// Package app provides application services that orchestrate domain logic.
package app

import "errors"

// Application errors.
var (
	ErrUnknownSetting  = errors.New("unknown setting")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrIdentityMissing = errors.New("identity id is required")
)
