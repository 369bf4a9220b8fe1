package maintenance

import "errors"

var (
	// ErrOpenerRequired is returned when no storage opener is provided.
	ErrOpenerRequired = errors.New("storage opener required")

	// ErrRootRequired is returned when no storage root is provided.
	ErrRootRequired = errors.New("storage root required")

	// ErrInvalidInterval is returned for a non-positive job interval.
	ErrInvalidInterval = errors.New("interval must be positive")
)
