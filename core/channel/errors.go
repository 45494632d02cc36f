package channel

import "errors"

var (
	// ErrUnknownBroker is returned by Registry.Create for a type with no registered factory.
	ErrUnknownBroker = errors.New("unknown broker type")

	// ErrNilHandler is returned when Subscribe is called without a handler.
	ErrNilHandler = errors.New("channel handler is nil")

	// ErrNilFactory is returned when registering a nil factory.
	ErrNilFactory = errors.New("broker factory is nil")

	// ErrEmptyChannel is returned when a channel name is required but empty.
	ErrEmptyChannel = errors.New("channel name is empty")
)
