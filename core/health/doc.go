// Package health provides HTTP handlers for service health monitoring.
//
// Handlers:
//   - Liveness: process is running (no dependency checks)
//   - Readiness: every dependency check passes
//
// Usage:
//
//	mux := http.NewServeMux()
//	health.Register(mux, logger,
//		redis.Healthcheck(client),
//		broker.Connect,
//	)
//
// Dependency checks follow the func(context.Context) error signature, so a
// channel.Broker's Connect method or integration/database/redis.Healthcheck
// can be passed directly.
package health
