//go:build !noredis

package detect

import (
	"github.com/dmitrymomot/photon/core/channel"
	"github.com/dmitrymomot/photon/integration/channel/redis"
)

// RedisEnabled reports whether the redis transport is compiled in.
const RedisEnabled = true

func registerRedis(reg *channel.Registry, o *options) {
	_ = reg.Register(channel.TypeRedis, func(cfg channel.Config) (channel.Broker, error) {
		return redis.FromConfig(cfg,
			redis.WithLogger(o.logger),
			redis.WithMeterProvider(o.provider),
		)
	})
}
