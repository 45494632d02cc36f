// Package config reads environment variables into tagged structs with
// caarlos0/env. A .env file in the working directory is loaded once through
// godotenv before the first parse; a missing file is ignored.
//
// Load caches the first result per struct type, so every caller of
//
//	var cfg cliConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// sees the same values for the life of the process. Parse skips the cache and
// is what channel.LoadConfig uses, because a broker registry re-runs detection
// after Clear and must observe the current environment. MustLoad panics on
// error and is meant for main.
package config
