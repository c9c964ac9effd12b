// Package config loads service settings from defaults, an optional config
// file, .env files, AGENT2000_* environment variables and command flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/agent2000/agent2000/internal/logging"
	"github.com/agent2000/agent2000/pkg/apperr"
	"github.com/agent2000/agent2000/pkg/dotenv"
	"github.com/agent2000/agent2000/pkg/history"
	"github.com/agent2000/agent2000/pkg/history/middleware"
	"github.com/agent2000/agent2000/pkg/ratelimit"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "AGENT2000"

// DefaultConfigName is looked up as agent2000.{yaml,json,toml} in the working directory.
const DefaultConfigName = "agent2000"

// History backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

type ServerConfig struct {
	Port            int           `mapstructure:"port" yaml:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type HistoryConfig struct {
	Backend        string        `mapstructure:"backend" yaml:"backend"`
	Path           string        `mapstructure:"path" yaml:"path"`
	MaxEntries     int           `mapstructure:"max_entries" yaml:"max_entries"`
	PruneThreshold int           `mapstructure:"prune_threshold" yaml:"prune_threshold"`
	AutoPrune      bool          `mapstructure:"auto_prune" yaml:"auto_prune"`
	Redact         []string      `mapstructure:"redact" yaml:"redact"`
	EncryptionKey  string        `mapstructure:"encryption_key" yaml:"-"` // Secret
	FallbackKeys   []string      `mapstructure:"fallback_keys" yaml:"-"`  // Secret
	TTL            time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"-"` // Secret
	DB       int    `mapstructure:"db" yaml:"db"`
}

type RateLimitConfig struct {
	MaxRequests int     `mapstructure:"max_requests" yaml:"max_requests"`
	PerSeconds  float64 `mapstructure:"per_seconds" yaml:"per_seconds"`
}

type TokensConfig struct {
	Model string `mapstructure:"model" yaml:"model"`
}

type InputConfig struct {
	MaxSize int `mapstructure:"max_size" yaml:"max_size"`
}

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" yaml:"ratelimit"`
	Tokens    TokensConfig    `mapstructure:"tokens" yaml:"tokens"`
	Input     InputConfig     `mapstructure:"input" yaml:"input"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

var defaults = map[string]any{
	"server.port":             8080,
	"server.shutdown_timeout": 5 * time.Second,
	"log.level":               "info",
	"log.format":              "text",
	"history.backend":         BackendMemory,
	"history.path":            "./data/history",
	"history.max_entries":     1000,
	"history.prune_threshold": 2000,
	"history.auto_prune":      true,
	"history.redact":          []string{},
	"history.encryption_key":  "",
	"history.fallback_keys":   []string{},
	"history.ttl":             time.Duration(0),
	"redis.addr":              "localhost:6379",
	"redis.password":          "",
	"redis.db":                0,
	"ratelimit.max_requests":  60,
	"ratelimit.per_seconds":   60.0,
	"tokens.model":            "gpt-4",
	"input.max_size":          0,
}

// legacyEnv lists extra variable names accepted for a key, after the
// prefixed default.
var legacyEnv = map[string][]string{
	"input.max_size": {"AGENT2000_MAX_INPUT_SIZE"},
	"redis.addr":     {"REDIS_ADDR"},
	"redis.password": {"REDIS_PASSWORD"},
}

// Options controls where Load looks.
type Options struct {
	// ConfigFile is read when set; otherwise agent2000.* is looked up in the
	// working directory and skipped when absent.
	ConfigFile string
	// EnvFile is the dotenv file to load; empty means ./.env.
	EnvFile string
	// Flags maps config keys to command flags. A flag overrides every other
	// source only when the user set it.
	Flags map[string]*pflag.Flag
}

// Load resolves the configuration.
func Load(opts Options) (*Config, error) {
	if _, err := dotenv.Load(opts.EnvFile, false); err != nil {
		return nil, apperr.Configuration("failed to load env file", apperr.WithCause(err))
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(slices.Insert(slices.Clone(names), 0, key, envKey)...); err != nil {
			return nil, apperr.Configuration("failed to bind environment", apperr.WithCause(err))
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, apperr.Configuration("failed to read config file", apperr.WithCause(err))
		}
	}

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, apperr.Configuration("failed to bind flag "+flag.Name, apperr.WithCause(err))
		}
	}

	cfg := &Config{File: v.ConfigFileUsed()}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperr.Configuration("failed to decode configuration", apperr.WithCause(err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration with no file, env or flags applied.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Port: 8080, ShutdownTimeout: 5 * time.Second},
		Log:       LogConfig{Level: "info", Format: "text"},
		History:   HistoryConfig{Backend: BackendMemory, Path: "./data/history", MaxEntries: 1000, PruneThreshold: 2000, AutoPrune: true, Redact: []string{}},
		Redis:     RedisConfig{Addr: "localhost:6379"},
		RateLimit: RateLimitConfig{MaxRequests: 60, PerSeconds: 60},
		Tokens:    TokensConfig{Model: "gpt-4"},
	}
}

// Validate reports every invalid setting in one configuration error.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		problems = append(problems, "server.shutdown_timeout must be positive")
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		problems = append(problems, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	switch c.History.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		problems = append(problems, fmt.Sprintf("history.backend %q must be memory, file or redis", c.History.Backend))
	}
	if c.History.MaxEntries <= 0 {
		problems = append(problems, "history.max_entries must be positive")
	}
	if c.History.EncryptionKey != "" {
		if _, err := middleware.ParseKey(c.History.EncryptionKey); err != nil {
			problems = append(problems, "history.encryption_key: "+err.Error())
		}
	}
	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.PerSeconds <= 0 {
		problems = append(problems, "ratelimit.max_requests and ratelimit.per_seconds must be positive")
	}
	if len(problems) == 0 {
		return nil
	}
	return apperr.Configuration("invalid configuration", apperr.WithDetails(map[string]any{
		"problems": problems,
	}))
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() slog.Level {
	return logging.ParseLevel(c.Log.Level)
}

// HistoryManager returns the manager settings.
func (c *Config) HistoryManager() history.Config {
	return history.Config{
		MaxEntries:     c.History.MaxEntries,
		AutoPrune:      c.History.AutoPrune,
		PruneThreshold: c.History.PruneThreshold,
	}
}

// APILimiter returns the settings of the limiter guarding the HTTP API.
func (c *Config) APILimiter() ratelimit.Config {
	return ratelimit.Config{
		MaxRequests: c.RateLimit.MaxRequests,
		Window:      time.Duration(c.RateLimit.PerSeconds * float64(time.Second)),
	}
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
