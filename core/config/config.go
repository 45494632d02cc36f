package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrInvalidTarget is returned when the destination is not a non-nil struct pointer.
var ErrInvalidTarget = errors.New("config: target must be a non-nil pointer to a struct")

var (
	dotenvOnce sync.Once
	cache      sync.Map // reflect.Type -> T
)

func loadDotenv() {
	dotenvOnce.Do(func() {
		// Missing .env is the common case in production.
		_ = godotenv.Load()
	})
}

// Load parses environment variables into cfg. The first successful load of a
// type is cached and copied into every later call for the same type.
func Load[T any](cfg *T) error {
	t, err := targetType(cfg)
	if err != nil {
		return err
	}

	if cached, ok := cache.Load(t); ok {
		*cfg = cached.(T)
		return nil
	}

	var fresh T
	if err := Parse(&fresh); err != nil {
		return err
	}

	actual, _ := cache.LoadOrStore(t, fresh)
	*cfg = actual.(T)
	return nil
}

// MustLoad is like Load but panics on error.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// Parse reads the current environment into cfg without touching the cache.
func Parse[T any](cfg *T) error {
	if _, err := targetType(cfg); err != nil {
		return err
	}

	loadDotenv()

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse %T: %w", *cfg, err)
	}
	return nil
}

func targetType[T any](cfg *T) (reflect.Type, error) {
	if cfg == nil {
		return nil, ErrInvalidTarget
	}
	t := reflect.TypeOf(cfg).Elem()
	if t.Kind() != reflect.Struct {
		return nil, ErrInvalidTarget
	}
	return t, nil
}
