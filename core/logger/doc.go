// Package logger builds log/slog loggers and the attribute helpers shared by
// every broker transport.
//
// New defaults to text output at info level on stdout. WithDevelopment and
// WithProduction are presets for the CLI; library code never constructs its
// own logger and falls back to Discard when none is injected.
//
//	log := logger.New(logger.WithProduction("channelctl"))
//	log.Info("subscribed",
//		logger.Transport("redis"),
//		logger.Channel("board:42"),
//	)
//
// Helpers for optional values (Error, Pattern, Source, Event) return the empty
// slog.Attr on zero input, which slog leaves out of the record:
//
//	log.Warn("publish failed", logger.Error(err))
//
//	broker := channel.NewMemory(channel.WithMemoryLogger(logger.Discard()))
package logger
