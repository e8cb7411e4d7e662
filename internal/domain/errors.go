package domain

import "errors"

var (
	// ErrEmptyBatch is returned when a batch operation receives no events.
	ErrEmptyBatch = errors.New("empty batch: at least one event is required")

	// ErrResolution marks a location that could not be turned into a coordinate.
	ErrResolution = errors.New("location resolution failed")

	// ErrFeed marks a disaster feed that was unreachable or returned garbage.
	ErrFeed = errors.New("disaster feed unavailable")

	// ErrBroker marks a publish or consume transport failure.
	ErrBroker = errors.New("broker failure")

	// ErrCacheUnavailable marks a cache read or write that could not complete.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrMalformedMessage marks input that can never be decoded, no matter how
	// often it is retried.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrNoRawEvents is returned when there are no parked events to process.
	ErrNoRawEvents = errors.New("no raw events")
)
