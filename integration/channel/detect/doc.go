// Package detect wires every built-in transport into a channel.Registry.
//
// It is the usual entry point for applications:
//
//	reg := detect.NewRegistry(detect.WithLogger(logger))
//	broker := reg.Get()
//
// Transport selection follows channel.Registry.Detect and is driven by the
// environment (PHOTON_CHANNEL_BROKER, PHOTON_REDIS_URL or REDIS_URL,
// PHOTON_CHANNEL_HTTP_URL, PHOTON_DAEMON_ENABLED).
//
// The redis transport pulls in github.com/redis/go-redis/v9. Building with
// -tags noredis leaves it out entirely; a Redis URL in the environment is
// then ignored and detection falls through to the next candidate.
package detect
