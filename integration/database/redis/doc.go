// Package redis builds go-redis v9 clients that are known to be reachable.
//
// Connect parses a redis:// or rediss:// URL, applies any ClientOption and
// pings the server, retrying with exponential backoff (cenkalti/backoff/v5)
// until Config.RetryAttempts or Config.ConnectTimeout runs out. A client that
// never answers is closed and ErrNotReady is returned joined with the last
// ping error.
//
//	client, err := redis.Connect(ctx, redis.Config{
//		ConnectionURL: "redis://localhost:6379/0",
//		RetryAttempts: 3,
//		RetryInterval: 200 * time.Millisecond,
//	}, redis.WithClientName("photon-publisher"))
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// Healthcheck adapts a client to the core/health Check signature:
//
//	health.Register(mux, log, redis.Healthcheck(client))
//
// The channel transport in integration/channel/redis opens two clients through
// Connect: one publishes, the other owns the dedicated pub/sub connection.
package redis
