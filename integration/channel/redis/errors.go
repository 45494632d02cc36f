package redis

import "errors"

var (
	// ErrMissingURL is returned by New when no connection URL is configured.
	ErrMissingURL = errors.New("redis connection URL is not configured")

	// ErrSubscribeFailed wraps connection and command failures on Subscribe.
	ErrSubscribeFailed = errors.New("redis subscribe failed")

	// ErrConfirmTimeout is joined with ErrSubscribeFailed when Redis does not
	// acknowledge a SUBSCRIBE or PSUBSCRIBE within the subscribe timeout.
	ErrConfirmTimeout = errors.New("redis did not confirm the subscription in time")
)
