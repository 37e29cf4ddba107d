// Package config loads aishi configuration.
//
// Sources are applied in order, later overriding earlier: built-in defaults,
// an optional YAML file, then AISHI_ environment variables. Nested keys use a
// double underscore in the environment:
//
//	AISHI_AUTHORITY__NAME=drand          -> authority.name
//	AISHI_EVENTS__KAFKA__BROKERS=a:9092,b:9092
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"aishi/internal/chain"
	"aishi/internal/logging"
	"aishi/internal/store"
	"aishi/internal/timeauth"
	"aishi/internal/token"
)

// DefaultEnvPrefix is the environment variable prefix.
const DefaultEnvPrefix = "AISHI_"

// Config is the full aishi configuration.
type Config struct {
	DataDir   string          `koanf:"data_dir"`
	Store     store.Config    `koanf:"store"`
	Token     TokenConfig     `koanf:"token"`
	Authority timeauth.Config `koanf:"authority"`
	Events    EventsConfig    `koanf:"events"`
	Log       logging.Config  `koanf:"log"`
	HTTP      HTTPConfig      `koanf:"http"`
}

type TokenConfig struct {
	// BaseURI prefixes "<id>.json" in token URIs.
	BaseURI string `koanf:"base_uri"`

	// Admin is the genesis account granted admin and minter roles when the
	// registry is first created.
	Admin string `koanf:"admin"`
}

type EventsConfig struct {
	// AuditLog, when set, receives every event as a JSON line.
	AuditLog string      `koanf:"audit_log"`
	Kafka    KafkaConfig `koanf:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// AdminAddress parses Token.Admin. An unset admin yields the zero address.
func (c *Config) AdminAddress() (chain.Address, error) {
	if c.Token.Admin == "" {
		return chain.ZeroAddress, nil
	}
	return chain.ParseAddress(c.Token.Admin)
}

// Validate checks values that cannot be caught by unmarshalling.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Store.Backend) {
	case "", "memory", "file", "badger":
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}

	switch strings.ToLower(c.Authority.Name) {
	case "", "system", "drand":
	default:
		errs = append(errs, fmt.Errorf("authority.name: unknown authority %q", c.Authority.Name))
	}

	if _, err := c.AdminAddress(); err != nil {
		errs = append(errs, fmt.Errorf("token.admin: %w", err))
	}

	if len(c.Events.Kafka.Brokers) > 0 && c.Events.Kafka.Topic == "" {
		errs = append(errs, errors.New("events.kafka.topic: required when brokers are set"))
	}

	return errors.Join(errs...)
}

func defaults() map[string]any {
	return map[string]any{
		"store": map[string]any{
			"backend": "file",
		},
		"token": map[string]any{
			"base_uri": token.DefaultBaseURI,
		},
		"authority": map[string]any{
			"name": "system",
		},
		"log": map[string]any{
			"level":        "info",
			"max_size_mb":  100,
			"max_backups":  10,
			"max_age_days": 30,
			"compress":     true,
		},
		"http": map[string]any{
			"addr": "127.0.0.1:8080",
		},
	}
}

// Loader loads configuration from defaults, file and environment.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides map[string]any
}

// Option configures a Loader.
type Option func(*Loader)

func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithOverride sets key after every other source, for command-line flags.
func WithOverride(key string, value any) Option {
	return func(l *Loader) {
		l.overrides[key] = value
	}
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
		overrides: make(map[string]any),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source and returns the validated configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.k.Load(mapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}

	if err := l.k.Load(env.ProviderWithValue(l.envPrefix, ".", l.transformEnv), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	for key, value := range l.overrides {
		if err := l.k.Set(key, value); err != nil {
			return nil, fmt.Errorf("override %s: %w", key, err)
		}
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Store.Dir == "" && cfg.DataDir != "" {
		cfg.Store.Dir = cfg.DataDir
	}
	if cfg.Store.Dir != "" && strings.EqualFold(cfg.Store.Backend, "badger") {
		cfg.Store.Dir = filepath.Join(cfg.Store.Dir, "badger")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// transformEnv maps AISHI_EVENTS__KAFKA__BROKERS to events.kafka.brokers and
// splits list values on commas.
func (l *Loader) transformEnv(key, value string) (string, any) {
	key = strings.TrimPrefix(key, l.envPrefix)
	key = strings.ToLower(strings.ReplaceAll(key, "__", "."))

	if key == "events.kafka.brokers" {
		var brokers []string
		for _, b := range strings.Split(value, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		return key, brokers
	}
	return key, value
}

// mapProvider serves a nested map to koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
