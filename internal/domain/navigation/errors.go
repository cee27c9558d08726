package navigation

import "errors"

var (
	// ErrInvalidURL is returned for empty, unparsable, relative or scheme-less URLs.
	ErrInvalidURL = errors.New("invalid url")
	// ErrCommitted is returned when mutating the URL of a committed entry.
	ErrCommitted = errors.New("entry already committed")
)
