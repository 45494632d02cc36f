package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Helpers that take optional values return the empty Attr when the value is
// missing; slog drops empty attributes, so call sites need no nil checks.

// Error returns err under the key "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups the non-nil errors under "errors", keyed by their position
// in errs.
func Errors(errs ...error) slog.Attr {
	var as []slog.Attr
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Duration returns d under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Channel names the logical channel a record refers to.
func Channel(name string) slog.Attr {
	return slog.String("channel", name)
}

// Pattern names a wildcard subscription. Literal channels yield the empty Attr.
func Pattern(p string) slog.Attr {
	if p == "" {
		return slog.Attr{}
	}
	return slog.String("pattern", p)
}

// Transport names the broker type ("redis", "daemon", ...).
func Transport(name string) slog.Attr {
	return slog.String("transport", name)
}

// Source names the process a message originated from.
func Source(src string) slog.Attr {
	if src == "" {
		return slog.Attr{}
	}
	return slog.String("source", src)
}

// Event names the message event.
func Event(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("event", name)
}

// Address is the dial or listen target: socket path, URL or host:port.
func Address(addr string) slog.Attr {
	return slog.String("address", addr)
}

// Handlers is the number of handlers registered on a channel.
func Handlers(n int) slog.Attr {
	return slog.Int("handlers", n)
}

// StatusCode is an HTTP response status.
func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

// Component identifies the subsystem that produced a record.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
