// Package config loads the inkframe configuration from a TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Single day event policies, applied when an event starts and ends on the same day.
const (
	SingleDayStart = "start"
	SingleDayEnd   = "end"
	SingleDayBoth  = "both"
)

// Duration wraps time.Duration so it can be written as "150s" or "24h" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the full service configuration.
type Config struct {
	RootPath          string   `toml:"root_path"`
	DatabasePath      string   `toml:"database_path"`
	SharedImagesPath  string   `toml:"shared_images_path"`
	LocalImagesPath   string   `toml:"local_images_path"`
	CachePath         string   `toml:"cache_path"`
	CacheMaxAge       Duration `toml:"cache_max_age"`
	StaticPath        string   `toml:"static_path"` // wake files and render outputs
	ScriptsPath       string   `toml:"scripts_path"`
	ScriptInterpreter string   `toml:"script_interpreter"`
	ScriptTimeout     Duration `toml:"script_timeout"`
	EventPollInterval Duration `toml:"event_poll_interval"`
	DispatchLookahead Duration `toml:"dispatch_lookahead"`
	SingleDayPolicy   string   `toml:"single_day_policy"` // "start", "end" or "both"
	Timezone          string   `toml:"timezone"`
	Listen            string   `toml:"listen"`
	LogLevel          string   `toml:"log_level"`
	LogFormat         string   `toml:"log_format"` // "text" or "json"
	WatchInterval     Duration `toml:"watch_interval"`

	Remote RemoteConfig `toml:"remote"`
}

// RemoteConfig configures the optional S3 mirror of the shared image tree.
// The mirror is disabled when S3Bucket is empty.
type RemoteConfig struct {
	AWSProfile   string   `toml:"aws_profile"`
	S3Bucket     string   `toml:"s3_bucket"`
	S3Prefix     string   `toml:"s3_prefix"`
	SyncInterval Duration `toml:"sync_interval"`
}

// Default returns a Config rooted at rootPath with every default applied.
func Default(rootPath string) *Config {
	cfg := &Config{RootPath: rootPath}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.RootPath == "" {
		c.RootPath = "."
	}
	setPath := func(p *string, name string) {
		if *p == "" {
			*p = filepath.Join(c.RootPath, name)
		}
	}
	setPath(&c.DatabasePath, "inkframe.db")
	setPath(&c.SharedImagesPath, "shared_images")
	setPath(&c.LocalImagesPath, "local_images")
	setPath(&c.CachePath, "image_cache.json")
	setPath(&c.StaticPath, "static")
	setPath(&c.ScriptsPath, "pyscripts")

	setDuration := func(d *Duration, def time.Duration) {
		if d.Duration == 0 {
			d.Duration = def
		}
	}
	setDuration(&c.CacheMaxAge, 24*time.Hour)
	setDuration(&c.ScriptTimeout, 5*time.Minute)
	setDuration(&c.EventPollInterval, 150*time.Second)
	setDuration(&c.DispatchLookahead, 30*time.Minute)
	setDuration(&c.WatchInterval, time.Hour)
	setDuration(&c.Remote.SyncInterval, time.Hour)

	if c.ScriptInterpreter == "" {
		c.ScriptInterpreter = "python3"
	}
	if c.SingleDayPolicy == "" {
		c.SingleDayPolicy = SingleDayStart
	}
	if c.Listen == "" {
		c.Listen = "0.0.0.0:8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// applyEnv overrides file values with INKFRAME_* environment variables.
func (c *Config) applyEnv() {
	for env, field := range map[string]*string{
		"INKFRAME_ROOT_PATH":     &c.RootPath,
		"INKFRAME_SHARED_IMAGES": &c.SharedImagesPath,
		"INKFRAME_LOCAL_IMAGES":  &c.LocalImagesPath,
		"INKFRAME_LISTEN":        &c.Listen,
		"INKFRAME_AWS_PROFILE":   &c.Remote.AWSProfile,
		"INKFRAME_S3_BUCKET":     &c.Remote.S3Bucket,
	} {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	positive := map[string]time.Duration{
		"cache_max_age":        c.CacheMaxAge.Duration,
		"script_timeout":       c.ScriptTimeout.Duration,
		"event_poll_interval":  c.EventPollInterval.Duration,
		"watch_interval":       c.WatchInterval.Duration,
		"remote.sync_interval": c.Remote.SyncInterval.Duration,
	}
	for name, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	la := c.DispatchLookahead.Duration
	if la < time.Minute || la >= time.Hour || la%time.Minute != 0 {
		errs = append(errs, fmt.Errorf("dispatch_lookahead must be whole minutes between 1m and 59m, got %s", la))
	}

	switch c.SingleDayPolicy {
	case SingleDayStart, SingleDayEnd, SingleDayBoth:
	default:
		errs = append(errs, fmt.Errorf("unknown single_day_policy %q", c.SingleDayPolicy))
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err))
		}
	}
	return errors.Join(errs...)
}

// Location returns the configured timezone, or nil for the process local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil
	}
	return loc
}

// DispatchMinute is the minute past each hour when scheduled dispatch passes run.
func (c *Config) DispatchMinute() int {
	return 60 - int(c.DispatchLookahead.Minutes())
}

// Read decodes a Config from r without applying defaults.
func Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes cfg as TOML.
func Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Load reads the config at path, applies environment overrides and defaults, and
// validates the result. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to open config file: %w", err)
		default:
			defer f.Close()
			cfg, err = Read(f)
			if err != nil {
				return nil, fmt.Errorf("reading config from %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
