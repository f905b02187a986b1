package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// ICEServerConfig mirrors webrtc.ICEServer for the subset relevant to
// configuration (TURN credentials included for completeness).
type ICEServerConfig struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

type Config struct {
	IPC struct {
		SocketPath      string        `yaml:"socket_path"`
		VideoBufferSize int           `yaml:"video_buffer_size"`
		AudioBufferSize int           `yaml:"audio_buffer_size"`
		ReadDeadline    time.Duration `yaml:"read_deadline"`
	} `yaml:"ipc"`

	Signaling struct {
		ListenAddr      string        `yaml:"listen_addr"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"signaling"`

	WebRTC struct {
		VideoCodec     string            `yaml:"video_codec"`
		MaxBitrateKbps int               `yaml:"max_bitrate_kbps"`
		ICEServers     []ICEServerConfig `yaml:"ice_servers"`
		PortRangeMin   uint16            `yaml:"port_range_min"`
		PortRangeMax   uint16            `yaml:"port_range_max"`
	} `yaml:"webrtc"`

	Monitoring struct {
		PrometheusEnabled bool          `yaml:"prometheus_enabled"`
		MetricsInterval   time.Duration `yaml:"metrics_interval"`
	} `yaml:"monitoring"`

	CandidatePush struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"candidate_push"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled      bool   `yaml:"enabled"`
		Address      string `yaml:"address"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		PoolSize     int    `yaml:"pool_size"`
		StatsChannel string `yaml:"stats_channel"`
	} `yaml:"redis"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"`
		} `yaml:"http"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.IPC.SocketPath == "" {
		return fmt.Errorf("ipc.socket_path must not be empty")
	}
	if c.IPC.VideoBufferSize <= 0 {
		return fmt.Errorf("ipc.video_buffer_size must be > 0")
	}
	if c.IPC.AudioBufferSize <= 0 {
		return fmt.Errorf("ipc.audio_buffer_size must be > 0")
	}
	if c.IPC.ReadDeadline <= 0 {
		return fmt.Errorf("ipc.read_deadline must be > 0")
	}

	if c.Signaling.ListenAddr == "" {
		return fmt.Errorf("signaling.listen_addr must not be empty")
	}
	if len(c.Signaling.AllowedOrigins) == 0 {
		return fmt.Errorf("signaling.allowed_origins must not be empty")
	}
	if c.Signaling.ReadTimeout <= 0 {
		return fmt.Errorf("signaling.read_timeout must be > 0")
	}
	if c.Signaling.WriteTimeout <= 0 {
		return fmt.Errorf("signaling.write_timeout must be > 0")
	}
	if c.Signaling.ShutdownTimeout <= 0 {
		return fmt.Errorf("signaling.shutdown_timeout must be > 0")
	}

	switch c.WebRTC.VideoCodec {
	case "h264", "hevc":
	default:
		return fmt.Errorf("webrtc.video_codec must be 'h264' or 'hevc'")
	}
	if c.WebRTC.MaxBitrateKbps <= 0 || c.WebRTC.MaxBitrateKbps > 100000 {
		return fmt.Errorf("webrtc.max_bitrate_kbps must be between 1 and 100000")
	}
	if c.WebRTC.PortRangeMin > 0 || c.WebRTC.PortRangeMax > 0 {
		if c.WebRTC.PortRangeMin == 0 || c.WebRTC.PortRangeMax == 0 {
			return fmt.Errorf("webrtc.port_range_min and port_range_max must both be set when one is set")
		}
		if c.WebRTC.PortRangeMin >= c.WebRTC.PortRangeMax {
			return fmt.Errorf("webrtc.port_range_min must be < port_range_max")
		}
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.MetricsInterval <= 0 {
		return fmt.Errorf("monitoring.metrics_interval must be > 0 when prometheus_enabled=true")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error'")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be between 0 and 1")
		}
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file is not an error: defaults plus env apply.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults, matching the
// producer/consumer expectations documented in the signaling surface.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.IPC.SocketPath = "/tmp/elgato_stream.sock"
	cfg.IPC.VideoBufferSize = 120
	cfg.IPC.AudioBufferSize = 60
	cfg.IPC.ReadDeadline = 5 * time.Second

	cfg.Signaling.ListenAddr = ":8080"
	cfg.Signaling.AllowedOrigins = []string{"*"}
	cfg.Signaling.ReadTimeout = 30 * time.Second
	cfg.Signaling.WriteTimeout = 30 * time.Second
	cfg.Signaling.ShutdownTimeout = 10 * time.Second

	cfg.WebRTC.VideoCodec = "h264"
	cfg.WebRTC.MaxBitrateKbps = 5000

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.MetricsInterval = 5 * time.Second

	cfg.CandidatePush.Enabled = false

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.StatsChannel = "gateway:stats"

	cfg.Tracing.Enabled = false
	cfg.Tracing.SampleRate = 0.1

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	return cfg
}

// applyEnvOverrides layers GATEWAY_* environment variables on top of the
// loaded config, mirroring the producer-side deployment's own convention.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("GATEWAY_IPC_SOCKET_PATH"); v != "" {
		c.IPC.SocketPath = v
	}
	if v := os.Getenv("GATEWAY_HTTP_LISTEN_ADDR"); v != "" {
		c.Signaling.ListenAddr = v
	}
	if v := os.Getenv("GATEWAY_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		c.Signaling.AllowedOrigins = c.Signaling.AllowedOrigins[:0]
		for _, o := range origins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				c.Signaling.AllowedOrigins = append(c.Signaling.AllowedOrigins, trimmed)
			}
		}
	}
	if v := os.Getenv("GATEWAY_VIDEO_CODEC"); v != "" {
		c.WebRTC.VideoCodec = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("GATEWAY_MAX_BITRATE_KBPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GATEWAY_MAX_BITRATE_KBPS must be a valid integer: %w", err)
		}
		c.WebRTC.MaxBitrateKbps = n
	}
	if v := os.Getenv("GATEWAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("GATEWAY_REDIS_ENABLED"); v != "" {
		c.Redis.Enabled = strings.ToLower(strings.TrimSpace(v)) == "true"
	}
	if v := os.Getenv("GATEWAY_REDIS_ADDRESS"); v != "" {
		c.Redis.Address = v
	}
	return nil
}
