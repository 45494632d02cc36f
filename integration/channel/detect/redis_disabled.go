//go:build noredis

package detect

import "github.com/dmitrymomot/photon/core/channel"

// RedisEnabled reports whether the redis transport is compiled in.
const RedisEnabled = false

func registerRedis(*channel.Registry, *options) {}
