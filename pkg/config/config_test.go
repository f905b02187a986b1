package config

import (
	"testing"
	"time"
)

func validBaseConfig() *Config {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 10
	cfg.RateLimiting.HTTP.Burst = 20
	cfg.RateLimiting.HTTP.MaxConcurrent = 5
	return cfg
}

func TestValidate_DefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got error: %v", err)
	}
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to be valid when rate limiting disabled, got error: %v", err)
	}
}

func TestValidate_RateLimiting_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"http rps must be > 0", func(c *Config) { c.RateLimiting.HTTP.RequestsPerSecond = 0 }},
		{"http burst must be > 0", func(c *Config) { c.RateLimiting.HTTP.Burst = 0 }},
		{"http max concurrent must be >= 0", func(c *Config) { c.RateLimiting.HTTP.MaxConcurrent = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestValidate_WebRTC_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown codec rejected", func(c *Config) { c.WebRTC.VideoCodec = "vp8" }},
		{"bitrate zero rejected", func(c *Config) { c.WebRTC.MaxBitrateKbps = 0 }},
		{"bitrate over cap rejected", func(c *Config) { c.WebRTC.MaxBitrateKbps = 200000 }},
		{"port range with only min set rejected", func(c *Config) { c.WebRTC.PortRangeMin = 10000 }},
		{"port range inverted rejected", func(c *Config) {
			c.WebRTC.PortRangeMin = 20000
			c.WebRTC.PortRangeMax = 10000
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestValidate_RedisEnabledRequiresAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when redis enabled without address")
	}
}

func TestValidate_TracingEnabledRequiresJaegerURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.JaegerURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when tracing enabled without jaeger url")
	}
}

func TestLoad_MissingFile_FallsBackToDefaultsAndEnv(t *testing.T) {
	t.Setenv("GATEWAY_LOG_LEVEL", "debug")
	t.Setenv("GATEWAY_MAX_BITRATE_KBPS", "8000")

	cfg, err := Load("/nonexistent/path/gateway.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.WebRTC.MaxBitrateKbps != 8000 {
		t.Errorf("MaxBitrateKbps = %d, want 8000", cfg.WebRTC.MaxBitrateKbps)
	}
	if cfg.IPC.ReadDeadline != 5*time.Second {
		t.Errorf("ReadDeadline = %v, want 5s", cfg.IPC.ReadDeadline)
	}
}

func TestLoad_InvalidBitrateEnv_ReturnsError(t *testing.T) {
	t.Setenv("GATEWAY_MAX_BITRATE_KBPS", "not-a-number")
	if _, err := Load("/nonexistent/path/gateway.yaml"); err == nil {
		t.Fatal("expected error for non-numeric GATEWAY_MAX_BITRATE_KBPS")
	}
}
