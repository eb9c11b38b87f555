package domain

import "errors"

var (
	// ErrInvalidInput marks malformed request parameters, rejected before any external call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstream marks an unreachable or failing extraction backend, geocoder or search engine.
	ErrUpstream = errors.New("upstream unavailable")

	// ErrNoUnderstanding is returned when the mandatory classification step yields nothing usable.
	ErrNoUnderstanding = errors.New("query could not be understood")

	ErrUnknownModel = errors.New("unknown model")
	ErrNotFound     = errors.New("not found")
)
