package channel

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrymomot/photon/core/logger"
)

// Factory constructs a broker from configuration. Construction must not block
// on the network; transports connect lazily.
type Factory func(cfg Config) (Broker, error)

// Detector is an extension point consulted after the Redis and HTTP checks and
// before the daemon check. It returns the type to try and whether it applies.
type Detector func(cfg Config) (brokerType string, ok bool)

// Registry maps transport type names to factories and memoizes the active
// broker. It is owned by the application root and passed to the components
// that publish or subscribe. It is safe for concurrent use.
//
// Example:
//
//	reg := channel.NewRegistry()
//	reg.Register(channel.TypeNoOp, func(channel.Config) (channel.Broker, error) {
//	    return channel.NewNoOp(), nil
//	})
//	broker := reg.Get()
type Registry struct {
	getMu     sync.Mutex // serializes detection in Get
	mu        sync.Mutex
	factories map[string]Factory
	detectors []Detector

	active     Broker
	activeType string

	loadConfig func() (Config, error)
	logger     *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithConfig makes the registry use a fixed configuration instead of reading
// the environment.
func WithConfig(cfg Config) RegistryOption {
	return func(r *Registry) {
		r.loadConfig = func() (Config, error) { return cfg, nil }
	}
}

// WithConfigLoader sets the function used to read configuration on every
// Create and Detect call.
func WithConfigLoader(fn func() (Config, error)) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.loadConfig = fn
		}
	}
}

// WithDetector appends an auto-detection rule.
func WithDetector(d Detector) RegistryOption {
	return func(r *Registry) {
		if d != nil {
			r.detectors = append(r.detectors, d)
		}
	}
}

// WithRegistryLogger sets the logger used to report skipped candidates.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFactory registers a factory at construction time.
func WithFactory(brokerType string, f Factory) RegistryOption {
	return func(r *Registry) {
		_ = r.Register(brokerType, f)
	}
}

// NewRegistry creates an empty registry. Configuration is read from the
// environment unless WithConfig or WithConfigLoader is given.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		factories:  make(map[string]Factory),
		loadConfig: LoadConfig,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register stores f under brokerType, replacing any previous factory.
func (r *Registry) Register(brokerType string, f Factory) error {
	if f == nil {
		return fmt.Errorf("register %q: %w", brokerType, ErrNilFactory)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[brokerType] = f
	return nil
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typesLocked()
}

func (r *Registry) typesLocked() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Create constructs a new broker of the given type using the current
// configuration. The result is not memoized.
func (r *Registry) Create(brokerType string) (Broker, error) {
	cfg, err := r.config()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(brokerType, cfg)
}

func (r *Registry) createLocked(brokerType string, cfg Config) (Broker, error) {
	f, ok := r.factories[brokerType]
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %s)",
			ErrUnknownBroker, brokerType, strings.Join(r.typesLocked(), ", "))
	}

	b, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s broker: %w", brokerType, err)
	}
	return b, nil
}

// Detect resolves a broker from configuration. Candidates are tried in order
// and a candidate whose construction fails is skipped:
//
//  1. explicit PHOTON_CHANNEL_BROKER override
//  2. Redis connection URL present
//  3. HTTP webhook URL present
//  4. detectors added with WithDetector
//  5. daemon, unless PHOTON_DAEMON_ENABLED=false
//  6. noop
//
// Detect always returns a broker.
func (r *Registry) Detect() Broker {
	b, _ := r.detect()
	return b
}

func (r *Registry) detect() (Broker, string) {
	cfg, err := r.config()
	if err != nil {
		r.logger.Warn("failed to load broker configuration, using defaults", logger.Error(err))
		cfg = Config{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var candidates []string
	if t := strings.TrimSpace(cfg.Broker); t != "" {
		candidates = append(candidates, t)
	}
	if cfg.RedisConnectionURL() != "" {
		candidates = append(candidates, TypeRedis)
	}
	if strings.TrimSpace(cfg.HTTPURL) != "" {
		candidates = append(candidates, TypeHTTP)
	}
	for _, d := range r.detectors {
		if t, ok := d(cfg); ok {
			candidates = append(candidates, t)
		}
	}
	if cfg.DaemonAllowed() {
		candidates = append(candidates, TypeDaemon)
	}

	for _, t := range candidates {
		b, err := r.createLocked(t, cfg)
		if err != nil {
			r.logger.Warn("skipping broker candidate", logger.Transport(t), logger.Error(err))
			continue
		}
		r.logger.Debug("broker detected", logger.Transport(t))
		return b, t
	}

	if b, err := r.createLocked(TypeNoOp, cfg); err == nil {
		return b, TypeNoOp
	}
	return NewNoOp(), TypeNoOp
}

// Get returns the memoized broker, running detection on first use.
func (r *Registry) Get() Broker {
	r.getMu.Lock()
	defer r.getMu.Unlock()

	r.mu.Lock()
	if r.active != nil {
		b := r.active
		r.mu.Unlock()
		return b
	}
	r.mu.Unlock()

	b, t := r.detect()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		r.active, r.activeType = b, t
	}
	return r.active
}

// ActiveType returns the type name of the memoized broker, or "" if none.
// Brokers installed with Set report "custom".
func (r *Registry) ActiveType() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeType
}

// Set replaces the memoized broker.
func (r *Registry) Set(b Broker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = b
	r.activeType = ""
	if b != nil {
		r.activeType = "custom"
	}
}

// Clear forgets the memoized broker so the next Get runs detection again.
// The previous broker is not disconnected.
func (r *Registry) Clear() {
	r.Set(nil)
}

func (r *Registry) config() (Config, error) {
	cfg, err := r.loadConfig()
	if err != nil {
		return Config{}, fmt.Errorf("load broker config: %w", err)
	}
	return cfg, nil
}
