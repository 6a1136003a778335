package domain

import "errors"

var (
	// ErrUnknownProvider is returned for an identity provider that is not configured.
	ErrUnknownProvider = errors.New("unknown identity provider")

	// ErrInvalidState is returned when an OAuth callback carries an unknown or expired state.
	ErrInvalidState = errors.New("invalid or expired oauth state")
)
