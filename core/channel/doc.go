// Package channel provides a uniform publish/subscribe abstraction over
// interchangeable transports.
//
// # Core Components
//
// Message is the unit of communication: a channel name, an event tag, an
// optional payload, a timestamp in epoch milliseconds and a source identifier.
// Transports call Message.Prepare exactly once on the publish path so that the
// event, timestamp and source are always present when a message leaves it.
//
// Broker is the capability contract every transport satisfies: Publish,
// Subscribe, IsConnected, Connect and Disconnect. Publish is best-effort and
// fire-and-forget; Subscribe returns a Subscription handle owned by the caller.
//
// Subscription.Unsubscribe is the only cancellation primitive. It is
// idempotent and, when the last handler of an underlying connection goes away,
// the transport tears that connection down.
//
// Registry maps transport type names to factories and memoizes the active
// broker. Detection reads Config from the environment in a fixed order; see
// Registry.Detect.
//
// # Transports
//
// This package contains two transports without external dependencies:
//
//   - NoOp discards everything and is the safety fallback.
//   - Memory delivers in-process and is the reference implementation.
//
// Network transports live under integration/channel: daemon (Unix socket or
// Windows named pipe), redis (go-redis pub/sub) and httpsse (webhook publish,
// Server-Sent Events subscribe). integration/channel/detect composes a
// registry with all of them.
//
// # Basic Usage
//
//	reg := detect.NewRegistry(detect.WithLogger(logger))
//	broker := reg.Get()
//
//	sub, err := broker.Subscribe(ctx, "board:my-board", func(msg channel.Message) {
//		task, err := channel.DecodeData[TaskUpdated](msg)
//		if err != nil {
//			return
//		}
//		logger.Info("task updated", "task_id", task.ID)
//	})
//	if err != nil {
//		return err
//	}
//	defer sub.Unsubscribe()
//
//	err = broker.Publish(ctx, channel.Message{
//		Channel: "board:my-board",
//		Event:   "task-updated",
//		Data:    TaskUpdated{ID: "7"},
//	})
//
// # Handler Execution
//
// Handlers run synchronously on the goroutine that reads the connection, in
// the order messages were framed off the wire. A panicking handler is logged
// and does not affect sibling handlers or the read loop. Long-running work
// should be moved off the handler goroutine.
//
// # Wildcards
//
// Channels containing "*" are colon-segment patterns: "board:*:updates"
// matches "board:42:updates" but not "board:42:sub:updates". Support for
// patterns is transport-specific: Memory and Redis match patterns, the HTTP
// transport only understands the literal "*" as "every channel".
//
// # Thread Safety
//
// All types in this package are safe for concurrent use.
package channel
