// Package config loads the engine configuration from defaults, an optional
// YAML file, and SENTINEL_-prefixed environment variables, in that order of
// precedence (later wins).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/luminasec/sentinel/pkg/classify"
	"github.com/luminasec/sentinel/pkg/decision"
	"github.com/luminasec/sentinel/pkg/logging"
	"github.com/luminasec/sentinel/pkg/monitor"
	"github.com/luminasec/sentinel/pkg/screen"
	"github.com/luminasec/sentinel/pkg/store"
)

// PersistBackend selects where learned patterns are stored.
type PersistBackend string

const (
	PersistBadger PersistBackend = "badger"
	PersistRedis  PersistBackend = "redis"
	PersistNone   PersistBackend = "none"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr         string        `koanf:"addr" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	BodyLimit    int           `koanf:"body_limit"`
}

// PersistConfig holds the pattern persistence settings.
type PersistConfig struct {
	Backend       PersistBackend `koanf:"backend" validate:"oneof=badger redis none"`
	BadgerDir     string         `koanf:"badger_dir"`
	RedisAddr     string         `koanf:"redis_addr"`
	RedisPassword string         `koanf:"redis_password"`
	RedisDB       int            `koanf:"redis_db"`
	SweepInterval time.Duration  `koanf:"sweep_interval"`
}

// ArchiveConfig holds the verdict history settings.
type ArchiveConfig struct {
	Enabled bool   `koanf:"enabled"`
	DSN     string `koanf:"dsn"`
	// MaxInflight caps concurrent archive writes.
	MaxInflight int `koanf:"max_inflight"`
}

// Config is the full engine configuration tree.
type Config struct {
	Server      ServerConfig    `koanf:"server"`
	Log         logging.Config  `koanf:"log"`
	Monitor     monitor.Config  `koanf:"monitor"`
	Screening   screen.Config   `koanf:"screening"`
	Deep        classify.Config `koanf:"deep"`
	Store       store.Config    `koanf:"store"`
	Ladder      decision.Ladder `koanf:"ladder"`
	Persist     PersistConfig   `koanf:"persist"`
	Archive     ArchiveConfig   `koanf:"archive"`
	PatternPack string          `koanf:"pattern_pack"`
	// VerdictCacheSize bounds how many recent verdicts stay addressable for
	// feedback.
	VerdictCacheSize int `koanf:"verdict_cache_size"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8473",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			BodyLimit:    1 << 20,
		},
		Log:       logging.DefaultConfig(),
		Monitor:   monitor.DefaultConfig(),
		Screening: screen.DefaultConfig(),
		Deep:      classify.DefaultConfig(),
		Store:     store.DefaultConfig(),
		Ladder:    decision.DefaultLadder(),
		Persist: PersistConfig{
			Backend:       PersistBadger,
			BadgerDir:     "data/patterns",
			SweepInterval: time.Hour,
		},
		Archive: ArchiveConfig{
			Enabled:     false,
			MaxInflight: 8,
		},
		VerdictCacheSize: 4096,
	}
}

// HighSecurity returns a preset tuned for protection over convenience:
// lower thresholds, slower pattern decay.
func HighSecurity() Config {
	cfg := Default()
	cfg.Deep.Threshold = 0.50
	cfg.Ladder = decision.Ladder{Low: 0.30, Medium: 0.45, High: 0.60, Critical: 0.75}
	cfg.Store.Retention = 14 * 24 * time.Hour
	cfg.Store.Grace = 30 * 24 * time.Hour
	return cfg
}

// HighUsability returns a preset tuned to minimize friction: higher
// thresholds, faster decay of one-off patterns.
func HighUsability() Config {
	cfg := Default()
	cfg.Deep.Threshold = 0.70
	cfg.Ladder = decision.Ladder{Low: 0.40, Medium: 0.55, High: 0.70, Critical: 0.85}
	cfg.Store.Retention = 3 * 24 * time.Hour
	cfg.Store.Grace = 7 * 24 * time.Hour
	return cfg
}

const envPrefix = "SENTINEL_"

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty), and SENTINEL_ environment variables. SENTINEL_SERVER_ADDR
// overrides server.addr, and so on.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the structural constraints plus the cross-field invariants
// the tag language cannot express.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	if cfg.Monitor.LowWatermark >= cfg.Monitor.HighWatermark {
		return fmt.Errorf("config invalid: low watermark %.2f must be below high watermark %.2f",
			cfg.Monitor.LowWatermark, cfg.Monitor.HighWatermark)
	}
	if !(cfg.Ladder.Low < cfg.Ladder.Medium && cfg.Ladder.Medium < cfg.Ladder.High && cfg.Ladder.High < cfg.Ladder.Critical) {
		return fmt.Errorf("config invalid: severity ladder cutoffs must be strictly increasing")
	}
	if cfg.Store.Floor >= cfg.Store.Cap {
		return fmt.Errorf("config invalid: store floor %.2f must be below cap %.2f", cfg.Store.Floor, cfg.Store.Cap)
	}
	if cfg.Store.Retention >= cfg.Store.Grace {
		return fmt.Errorf("config invalid: retention %s must be shorter than grace %s", cfg.Store.Retention, cfg.Store.Grace)
	}
	if cfg.Persist.Backend == PersistRedis && cfg.Persist.RedisAddr == "" {
		return fmt.Errorf("config invalid: redis backend needs persist.redis_addr")
	}
	if cfg.Archive.Enabled && cfg.Archive.DSN == "" {
		return fmt.Errorf("config invalid: archive needs archive.dsn")
	}
	return nil
}
