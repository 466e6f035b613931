// Package config loads the server and client operational configuration:
// listen address, worker pool size, pipe pool limits, accepted handshake
// tokens, log level/format, the diagnostics HTTP surface, and session
// timeouts. It layers environment (TUPLREMOTE_*) > YAML file > defaults,
// after the teacher's pkg/config, built on
// spf13/viper for the layering and go-playground/validator/v10 for
// struct validation instead of a hand-rolled check function.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tupldb/remote/internal/handshake"
)

// Config is the complete operational configuration for a tuplremoted
// server or tuplremotectl client.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
	Session     SessionConfig     `mapstructure:"session" yaml:"session"`
}

// ServerConfig configures the RPC listener itself.
type ServerConfig struct {
	// ListenAddr is the TCP address the RPC listener binds, e.g. ":7070".
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr" validate:"required"`

	// WorkerLimit bounds how many handler calls one session runs
	// concurrently; <= 0 means unbounded.
	WorkerLimit int `mapstructure:"worker_limit" yaml:"worker_limit" validate:"gte=0"`

	// PipePoolLimit bounds how many pipes a single connection may have
	// acquired at once; 0 means unbounded.
	PipePoolLimit int `mapstructure:"pipe_pool_limit" yaml:"pipe_pool_limit" validate:"gte=0"`

	// Tokens is the accepted handshake token set, as "tokenA:tokenB"
	// decimal pairs. An empty list runs unauthenticated.
	Tokens []string `mapstructure:"tokens" yaml:"tokens"`

	// DataDir is where the bundled reference engine keeps its badger
	// store.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir" validate:"required"`

	// MaxFragmentSize bounds a single wire chunk payload in bytes.
	MaxFragmentSize int `mapstructure:"max_fragment_size" yaml:"max_fragment_size" validate:"gt=0"`
}

// LoggingConfig controls internal/logger's level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// DiagnosticsConfig controls the read-only HTTP diagnostics surface.
type DiagnosticsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`

	// AdminTokenSecret signs the bearer tokens internal/admintoken issues
	// for this surface. Empty means no issuer is built, so the surface's
	// routes are served without bearer-token checks when Enabled is true.
	AdminTokenSecret string `mapstructure:"admin_token_secret" yaml:"admin_token_secret"`
}

// SessionConfig controls per-connection session behavior.
type SessionConfig struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"gte=0"`
}

// DefaultConfig returns the configuration used when no file is found and
// no overrides are set.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":7070",
			WorkerLimit:     64,
			PipePoolLimit:   0,
			DataDir:         "./data",
			MaxFragmentSize: 1 << 15,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9090",
		},
		Diagnostics: DiagnosticsConfig{
			Enabled:    false,
			ListenAddr: ":9091",
		},
		Session: SessionConfig{
			IdleTimeout: 5 * time.Minute,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct-tag validation over cfg, returning every failing
// field in a single error rather than stopping at the first.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Load reads configuration from configPath (or the default search path
// if empty), applying env/file/default precedence, validating the
// result. A missing config file is not an error: it falls back to
// DefaultConfig with only environment overrides applied.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
			return nil, fmt.Errorf("config: unmarshal: %w", err)
		}
	} else {
		applyEnvOverrides(v, cfg)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("TUPLREMOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(configDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read file: %w", err)
	}
	return true, nil
}

// applyEnvOverrides applies the server.listen_addr and logging.level
// environment overrides on top of DefaultConfig when no file was found;
// no other key is read from the environment in that case.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if addr := v.GetString("server.listen_addr"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	if lvl := v.GetString("logging.level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// SaveConfig writes cfg as YAML to path, creating parent directories as
// needed, with owner-only permissions since it may carry token material.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}

// ParseTokens converts ServerConfig.Tokens ("tokenA:tokenB" decimal pairs)
// into the flat accept-list internal/handshake expects.
func ParseTokens(pairs []string) (handshake.TokenSet, error) {
	var ts handshake.TokenSet
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("config: invalid token pair %q, want \"tokenA:tokenB\"", pair)
		}
		a, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: invalid token %q: %w", parts[0], err)
		}
		b, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: invalid token %q: %w", parts[1], err)
		}
		ts = append(ts, a, b)
	}
	return ts, nil
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tuplremote")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "tuplremote")
}

// DefaultConfigPath returns the path Load searches when configPath is
// empty.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// Dir returns the directory Load and DefaultConfigPath search, exported
// for sibling CLI state (e.g. tuplremotectl's stored credentials) that
// belongs alongside the server config but isn't the config file itself.
func Dir() string {
	return configDir()
}
