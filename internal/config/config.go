// Package config loads the daemon configuration.
//
// Sources are layered, later ones winning: built-in defaults, an optional YAML
// file, SHUTTER_* environment variables and finally explicit overrides (the
// command line flags). Keys are "section.name", e.g. "store.redis_addr",
// and the matching variable is SHUTTER_STORE_REDIS_ADDR.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces the environment variables read by Load.
const EnvPrefix = "SHUTTER_"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Browser engines.
const (
	EngineChrome     = "chrome"
	EnginePlaywright = "playwright"
)

// Config is the complete daemon configuration.
type Config struct {
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Bridge  BridgeConfig  `mapstructure:"bridge" yaml:"bridge"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// StoreConfig selects and configures the state store.
type StoreConfig struct {
	Driver        string `mapstructure:"driver" yaml:"driver"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	// Namespace prefixes every Redis key and channel.
	Namespace string        `mapstructure:"namespace" yaml:"namespace"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
	// Prefix is prepended to the well-known state keys (url, filename...).
	Prefix  string        `mapstructure:"prefix" yaml:"prefix"`
	LockTTL time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
}

// BrowserConfig configures the headless browser.
type BrowserConfig struct {
	Engine string `mapstructure:"engine" yaml:"engine"`
	// Product picks the playwright browser: chromium, firefox or webkit.
	Product     string   `mapstructure:"product" yaml:"product"`
	RemoteURL   string   `mapstructure:"remote_url" yaml:"remote_url"`
	ExecPath    string   `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir string   `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Headless    bool     `mapstructure:"headless" yaml:"headless"`
	Install     bool     `mapstructure:"install" yaml:"install"`
	Args        []string `mapstructure:"args" yaml:"args"`

	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	WaitTimeout       time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	CaptureTimeout    time.Duration `mapstructure:"capture_timeout" yaml:"capture_timeout"`
}

// BridgeConfig tunes trigger processing.
type BridgeConfig struct {
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
	// DistributedLock serialises triggers across replicas sharing one Redis.
	DistributedLock bool `mapstructure:"distributed_lock" yaml:"distributed_lock"`
}

// HTTPConfig configures the state API. An empty Addr disables it.
type HTTPConfig struct {
	Addr    string `mapstructure:"addr" yaml:"addr"`
	Metrics bool   `mapstructure:"metrics" yaml:"metrics"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Defaults returns the built-in configuration as a nested map.
func Defaults() map[string]any {
	return map[string]any{
		"store": map[string]any{
			"driver":         DriverMemory,
			"redis_addr":     "localhost:6379",
			"redis_password": "",
			"redis_db":       0,
			"namespace":      "shutter:",
			"ttl":            "0s",
			"prefix":         "shutter.0.",
			"lock_ttl":       "2m",
		},
		"browser": map[string]any{
			"engine":             EngineChrome,
			"product":            "chromium",
			"remote_url":         "",
			"exec_path":          "",
			"user_data_dir":      "",
			"headless":           true,
			"install":            false,
			"args":               []string{},
			"viewport_width":     800,
			"viewport_height":    600,
			"navigation_timeout": "30s",
			"wait_timeout":       "30s",
			"capture_timeout":    "30s",
		},
		"bridge": map[string]any{
			"queue_size":       16,
			"distributed_lock": false,
		},
		"http": map[string]any{
			"addr":    ":8080",
			"metrics": true,
		},
		"log": map[string]any{
			"level":  "info",
			"format": "auto",
		},
	}
}

// Load builds the configuration from path (optional), the process environment
// and overrides keyed "section.name".
func Load(path string, overrides map[string]any) (*Config, error) {
	return load(path, os.LookupEnv, overrides)
}

func load(path string, lookupEnv func(string) (string, bool), overrides map[string]any) (*Config, error) {
	values := Defaults()

	if path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := merge(values, file); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	for _, key := range Keys() {
		if v, ok := lookupEnv(EnvName(key)); ok {
			if err := set(values, key, v); err != nil {
				return nil, err
			}
		}
	}

	for key, v := range overrides {
		if err := set(values, key, v); err != nil {
			return nil, fmt.Errorf("override %s: %w", key, err)
		}
	}

	cfg, err := decode(values)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Keys lists every configuration key, sorted.
func Keys() []string {
	var keys []string
	for section, v := range Defaults() {
		for name := range v.(map[string]any) {
			keys = append(keys, section+"."+name)
		}
	}
	sort.Strings(keys)
	return keys
}

// EnvName returns the environment variable read for key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverRedis:
	default:
		return fmt.Errorf("unknown store driver %q (want %s or %s)", c.Store.Driver, DriverMemory, DriverRedis)
	}
	switch c.Browser.Engine {
	case EngineChrome, EnginePlaywright:
	default:
		return fmt.Errorf("unknown browser engine %q (want %s or %s)", c.Browser.Engine, EngineChrome, EnginePlaywright)
	}
	if c.Bridge.QueueSize <= 0 {
		return fmt.Errorf("bridge.queue_size must be positive, got %d", c.Bridge.QueueSize)
	}
	if c.Bridge.DistributedLock && c.Store.Driver != DriverRedis {
		return fmt.Errorf("bridge.distributed_lock requires the %s store", DriverRedis)
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var file map[string]any
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return file, nil
}

// merge copies src over dst section by section. Unknown sections and keys
// are rejected so that typos surface instead of being ignored.
func merge(dst, src map[string]any) error {
	for section, raw := range src {
		target, ok := dst[section].(map[string]any)
		if !ok {
			return fmt.Errorf("unknown section %q", section)
		}
		if raw == nil {
			continue
		}
		values, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("section %q must be a mapping", section)
		}
		for name, v := range values {
			if _, known := target[name]; !known {
				return fmt.Errorf("unknown key %q", section+"."+name)
			}
			target[name] = v
		}
	}
	return nil
}

func set(values map[string]any, key string, v any) error {
	section, name, ok := strings.Cut(key, ".")
	if !ok {
		return fmt.Errorf("invalid key %q", key)
	}
	return merge(values, map[string]any{section: map[string]any{name: v}})
}

func decode(values map[string]any) (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(values); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
