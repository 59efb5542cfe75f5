// Package config loads the server and CLI configuration from an optional YAML
// file overlaid with INQUIRY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/inquiry/pkg/persistence/middleware"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. INQUIRY_STORAGE_DRIVER.
const EnvPrefix = "INQUIRY_"

// Config is the full configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Reasoning ReasoningConfig `mapstructure:"reasoning" yaml:"reasoning"`
	Pacing    PacingConfig    `mapstructure:"pacing" yaml:"pacing"`
	Traversal TraversalConfig `mapstructure:"traversal" yaml:"traversal"`
	Autosave  AutosaveConfig  `mapstructure:"autosave" yaml:"autosave"`
	Sessions  SessionsConfig  `mapstructure:"sessions" yaml:"sessions"`
	Tools     ToolsConfig     `mapstructure:"tools" yaml:"tools"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// StorageConfig selects the Repository adapter.
type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // memory, file, sqlite, redis
	// Path is the directory (file) or database file (sqlite).
	Path      string `mapstructure:"path" yaml:"path"`
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	// EncryptionKey is a base64 AES-256 key sealing session and editor state.
	EncryptionKey string   `mapstructure:"encryption_key" yaml:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys" yaml:"fallback_keys"`
	// MaskPII redacts e-mail addresses and phone numbers from stored answers.
	MaskPII     bool     `mapstructure:"mask_pii" yaml:"mask_pii"`
	PIIPatterns []string `mapstructure:"pii_patterns" yaml:"pii_patterns"`
}

// ReasoningConfig selects the reasoning transport.
type ReasoningConfig struct {
	Driver  string            `mapstructure:"driver" yaml:"driver"` // rules, http
	URL     string            `mapstructure:"url" yaml:"url"`
	Timeout time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`
}

type PacingConfig struct {
	Min     time.Duration `mapstructure:"min" yaml:"min"`
	Max     time.Duration `mapstructure:"max" yaml:"max"`
	PerChar time.Duration `mapstructure:"per_char" yaml:"per_char"`
}

type TraversalConfig struct {
	MaxConditionHops int `mapstructure:"max_condition_hops" yaml:"max_condition_hops"`
}

type AutosaveConfig struct {
	Quiet time.Duration `mapstructure:"quiet" yaml:"quiet"`
}

type SessionsConfig struct {
	TTL        time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Prediction bool          `mapstructure:"prediction" yaml:"prediction"`
	Narration  bool          `mapstructure:"narration" yaml:"narration"`
}

type ToolsConfig struct {
	File        string        `mapstructure:"file" yaml:"file"`
	AllowInline bool          `mapstructure:"allow_inline" yaml:"allow_inline"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MetricsAddr:     ":2112",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver:    "memory",
			Path:      "inquiries",
			RedisAddr: "localhost:6379",
			Prefix:    "inquiry:",
		},
		Reasoning: ReasoningConfig{Driver: "rules", Timeout: 30 * time.Second},
		Pacing:    PacingConfig{Min: 0, Max: 4 * time.Second, PerChar: 25 * time.Millisecond},
		Traversal: TraversalConfig{MaxConditionHops: 8},
		Autosave:  AutosaveConfig{Quiet: 1500 * time.Millisecond},
		Sessions:  SessionsConfig{TTL: 24 * time.Hour},
		Tools:     ToolsConfig{File: "tools.yaml", Timeout: 30 * time.Second},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides.
func Load(path string) (*Config, error) {
	return load(path, os.Environ())
}

func load(path string, environ []string) (*Config, error) {
	cfg := Default()

	raw := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}
	overlayEnv(raw, environ)

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(raw); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// sections are the top-level keys environment variables may address.
var sections = []string{"server", "storage", "reasoning", "pacing", "traversal", "autosave", "sessions", "tools", "log"}

// overlayEnv maps INQUIRY_<SECTION>_<KEY>=v onto raw[section][key].
// Variables that do not name a known section are ignored.
func overlayEnv(raw map[string]any, environ []string) {
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		rest := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
		for _, section := range sections {
			key, found := strings.CutPrefix(rest, section+"_")
			if !found || key == "" {
				continue
			}
			sub, _ := raw[section].(map[string]any)
			if sub == nil {
				sub = map[string]any{}
				raw[section] = sub
			}
			sub[key] = value
			break
		}
	}
}

// Validate rejects unknown drivers and impossible bounds.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory", "file", "sqlite", "redis":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if c.Storage.EncryptionKey != "" {
		if _, err := middleware.ParseKeys(c.Storage.EncryptionKey, c.Storage.FallbackKeys...); err != nil {
			errs = append(errs, fmt.Errorf("storage.encryption_key: %w", err))
		}
	}
	for _, p := range c.Storage.PIIPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("storage.pii_patterns: %w", err))
		}
	}
	switch c.Reasoning.Driver {
	case "rules":
	case "http":
		if c.Reasoning.URL == "" {
			errs = append(errs, errors.New("reasoning.url is required for the http driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("reasoning.driver: unknown driver %q", c.Reasoning.Driver))
	}
	if c.Pacing.Max > 0 && c.Pacing.Min > c.Pacing.Max {
		errs = append(errs, errors.New("pacing.min must not exceed pacing.max"))
	}
	if c.Traversal.MaxConditionHops < 1 {
		errs = append(errs, errors.New("traversal.max_condition_hops must be positive"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
