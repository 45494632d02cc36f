package redis

import "errors"

var (
	ErrEmptyURL          = errors.New("redis: connection url is empty")
	ErrInvalidURL        = errors.New("redis: invalid connection url")
	ErrNotReady          = errors.New("redis: server did not answer ping before the retry budget ran out")
	ErrHealthcheckFailed = errors.New("redis: healthcheck failed")
)
