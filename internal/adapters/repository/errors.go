package repository

import "errors"

// Sentinel kinds for result store errors.
var (
	ErrNotFound     = errors.New("seeker not found")
	ErrNoResults    = errors.New("no batch has been published")
	ErrInvalidLimit = errors.New("invalid page limit")
)
