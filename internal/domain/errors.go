package domain

import "errors"

// Sentinel errors returned by the core. Boundary code maps the config and
// mode errors to client errors with errors.Is. ErrInvalidBar means the bar
// source served bad data and is a server error.
var (
	ErrInvalidConfig = errors.New("invalid strategy config")
	ErrUnknownMode   = errors.New("unknown mode")
	ErrInvalidBar    = errors.New("invalid bar")
)

// IsClientError reports whether err stems from bad caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrUnknownMode)
}
