package httpsse

import "errors"

var (
	// ErrMissingURL is returned by New when no publish URL is configured.
	ErrMissingURL = errors.New("http channel publish URL is not configured")

	// ErrPublishFailed wraps non-2xx answers and transport failures on Publish.
	ErrPublishFailed = errors.New("http channel publish failed")
)

var (
	errStreamEnded      = errors.New("event stream ended")
	errStreamStatus     = errors.New("unexpected event stream status")
	errTooManyMalformed = errors.New("too many malformed events")
)
