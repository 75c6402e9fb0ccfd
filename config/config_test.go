package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("INKFRAME_ROOT_PATH", "/srv/inkframe")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CachePath != "/srv/inkframe/image_cache.json" {
		t.Errorf("CachePath = %q", cfg.CachePath)
	}
	if cfg.CacheMaxAge.Duration != 24*time.Hour {
		t.Errorf("CacheMaxAge = %s, want 24h", cfg.CacheMaxAge)
	}
	if cfg.EventPollInterval.Duration != 150*time.Second {
		t.Errorf("EventPollInterval = %s, want 2m30s", cfg.EventPollInterval)
	}
	if cfg.ScriptInterpreter != "python3" {
		t.Errorf("ScriptInterpreter = %q, want python3", cfg.ScriptInterpreter)
	}
	if cfg.SingleDayPolicy != SingleDayStart {
		t.Errorf("SingleDayPolicy = %q, want %q", cfg.SingleDayPolicy, SingleDayStart)
	}
	if got := cfg.DispatchMinute(); got != 30 {
		t.Errorf("DispatchMinute() = %d, want 30", got)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inkframe.toml")
	content := `
root_path = "/data"
cache_max_age = "2h"
dispatch_lookahead = "20m"
single_day_policy = "both"

[remote]
s3_bucket = "from-file"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("INKFRAME_S3_BUCKET", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheMaxAge.Duration != 2*time.Hour {
		t.Errorf("CacheMaxAge = %s, want 2h", cfg.CacheMaxAge)
	}
	if cfg.Remote.S3Bucket != "from-env" {
		t.Errorf("Remote.S3Bucket = %q, want from-env", cfg.Remote.S3Bucket)
	}
	if cfg.LocalImagesPath != "/data/local_images" {
		t.Errorf("LocalImagesPath = %q", cfg.LocalImagesPath)
	}
	if got := cfg.DispatchMinute(); got != 40 {
		t.Errorf("DispatchMinute() = %d, want 40", got)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != "0.0.0.0:8080" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "unknown policy",
			mutate: func(c *Config) { c.SingleDayPolicy = "sometimes" },
			errMsg: "single_day_policy",
		},
		{
			name:   "lookahead too long",
			mutate: func(c *Config) { c.DispatchLookahead.Duration = 90 * time.Minute },
			errMsg: "dispatch_lookahead",
		},
		{
			name:   "lookahead not whole minutes",
			mutate: func(c *Config) { c.DispatchLookahead.Duration = 90 * time.Second },
			errMsg: "dispatch_lookahead",
		},
		{
			name:   "negative timeout",
			mutate: func(c *Config) { c.ScriptTimeout.Duration = -time.Second },
			errMsg: "script_timeout",
		},
		{
			name:   "bad timezone",
			mutate: func(c *Config) { c.Timezone = "Mars/Olympus" },
			errMsg: "timezone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("/tmp")
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.errMsg)
			}
		})
	}
}

func TestReadWrite_RoundTrip(t *testing.T) {
	original := Default("/data")
	original.Remote.S3Bucket = "frames"

	var buf bytes.Buffer
	if err := Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.ScriptTimeout != original.ScriptTimeout {
		t.Errorf("ScriptTimeout = %s, want %s", got.ScriptTimeout, original.ScriptTimeout)
	}
	if got.Remote.S3Bucket != "frames" {
		t.Errorf("Remote.S3Bucket = %q, want frames", got.Remote.S3Bucket)
	}
}
