package domain

import "errors"

// Source admission errors, shared by evaluations and challenges.
var (
	ErrNoSources        = errors.New("at least one source is required")
	ErrTooManySources   = errors.New("too many sources")
	ErrSourceTitleEmpty = errors.New("source title cannot be empty")
	ErrSourceURLTooLong = errors.New("source url too long")
)
