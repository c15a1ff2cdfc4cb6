package obligations

import "errors"

var (
	// ErrConfigNotFound is returned when an obligation config does not exist.
	ErrConfigNotFound = errors.New("obligations: config not found")
	// ErrNilConfig is returned when saving a nil config.
	ErrNilConfig = errors.New("obligations: nil config")
	// ErrNotDue is returned by a materialisation that found the config no longer due.
	ErrNotDue = errors.New("obligations: config not due")
	// ErrNoReadings is returned when a utility occurrence has no meter readings to bill.
	ErrNoReadings = errors.New("obligations: meter readings unavailable")
)
