package keeper

import "github.com/layer-3/keeper/core"

// Error categories returned by every Client method. Match with errors.Is.
var (
	// ErrValidation is returned for missing or malformed input
	ErrValidation = core.ErrValidation

	// ErrAuthentication is returned for bad credentials and for tokens that are
	// malformed, expired, of the wrong kind or no longer registered
	ErrAuthentication = core.ErrAuthentication

	// ErrStorage is returned when the session registry or directory is unavailable
	ErrStorage = core.ErrStorage
)
