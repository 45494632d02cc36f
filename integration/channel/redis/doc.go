// Package redis implements channel.Broker on top of Redis pub/sub using
// github.com/redis/go-redis/v9.
//
// The broker holds a publishing connection and a subscribing connection,
// both opened through integration/database/redis.Connect so that startup
// retries and PING verification behave the same as any other Redis client in
// the application. Channel names are prefixed (default "photon:channel:") so
// several deployments can share one Redis instance.
//
// # Usage
//
//	broker, err := redis.New(
//		redis.WithURL("redis://localhost:6379/0"),
//		redis.WithLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//	defer broker.Disconnect(ctx)
//
//	sub, err := broker.Subscribe(ctx, "board:*:updates", func(msg channel.Message) {
//		logger.Info("board updated", "channel", msg.Channel)
//	})
//	if err != nil {
//		return err
//	}
//	defer sub.Unsubscribe()
//
// # Delivery Semantics
//
// Publish is best effort: encoding, connection and command failures are
// logged and Publish still returns nil. Subscribe returns an error wrapping
// ErrSubscribeFailed when the subscribing connection cannot be opened or the
// SUBSCRIBE command cannot be sent.
//
// Payloads are JSON encoded channel.Message values. Payloads that cannot be
// decoded are dropped and counted; with WithDebug(true) a throttled warning
// is logged as well.
//
// # Patterns
//
// Channels containing "*" use PSUBSCRIBE. A delivery for a pattern is passed
// to that pattern's handlers only if channel.MatchPattern agrees, so
// "board:*:updates" never sees "board:1:sub:updates". A bare "*" receives
// every channel under the prefix.
package redis
