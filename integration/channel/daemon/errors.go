package daemon

import "errors"

var (
	// ErrDaemonUnavailable is returned by Subscribe when the daemon socket does not exist.
	ErrDaemonUnavailable = errors.New("daemon socket not found")

	// ErrSubscribeFailed wraps connection and write failures during the subscribe handshake.
	ErrSubscribeFailed = errors.New("daemon subscribe failed")

	// ErrSubscribeRejected is returned when the daemon answers a subscribe with an error frame.
	ErrSubscribeRejected = errors.New("daemon rejected subscription")

	// ErrClosedBeforeConfirm is returned when the connection ends before the daemon confirms.
	ErrClosedBeforeConfirm = errors.New("daemon closed connection before confirming subscription")

	// ErrConfirmTimeout is returned when no confirmation arrives in time.
	ErrConfirmTimeout = errors.New("daemon subscription confirmation timed out")
)
