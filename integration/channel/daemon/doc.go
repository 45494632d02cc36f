// Package daemon implements channel.Broker against a local broker daemon.
//
// The daemon listens on a Unix domain socket at {dir}/{name}.sock, where dir
// defaults to ~/.photon/daemons (PHOTON_DAEMON_SOCKET_DIR) and name is the
// process name (PHOTON_NAME or the executable base name). On Windows it
// listens on the named pipe \\.\pipe\photon-{name}, dialed through
// github.com/Microsoft/go-winio.
//
// # Wire Protocol
//
// Frames are JSON objects separated by "\n". Requests carry a UUID id and the
// daemon answers with a frame of the same id:
//
//	-> {"type":"subscribe","id":"...","channel":"board:1","clientType":"photon"}
//	<- {"type":"result","id":"..."}
//	<- {"type":"channel_message","channel":"board:1","message":{"event":"update","data":{},"timestamp":1700000000000,"source":"api"}}
//	-> {"type":"unsubscribe","id":"...","channel":"board:1"}
//
//	-> {"type":"publish","id":"...","channel":"board:1","message":{...}}
//	<- {"type":"result","id":"..."}
//
// An {"type":"error","id":"...","error":"..."} answer rejects the request.
// Lines that are not valid frames are dropped and counted.
//
// # Connections
//
// Publish dials a short-lived connection per message and never returns a
// delivery error; if the socket file does not exist it does nothing at all.
// Subscribe keeps one connection per distinct channel and returns only after
// the daemon has confirmed it. It fails with ErrDaemonUnavailable when the
// socket file is missing, ErrSubscribeRejected on an error frame,
// ErrClosedBeforeConfirm when the daemon hangs up and ErrConfirmTimeout when
// no answer arrives within the subscribe timeout.
//
// # Usage
//
//	broker := daemon.New("my-app", daemon.WithLogger(logger))
//	sub, err := broker.Subscribe(ctx, "board:1", func(msg channel.Message) {
//		logger.Info("update", "event", msg.Event)
//	})
//	if errors.Is(err, daemon.ErrDaemonUnavailable) {
//		// no daemon running for this app
//	}
package daemon
