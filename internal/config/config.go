package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ytget/ytsave/internal/logger"
)

// Backend names.
const (
	BackendInnerTube = "innertube"
	BackendKkdai     = "kkdai"
)

type Config struct {
	OutputDir string          `yaml:"output_dir"`
	Backend   string          `yaml:"backend"`
	HTTP      HTTPConfig      `yaml:"http"`
	InnerTube InnerTubeConfig `yaml:"innertube"`
	Stream    StreamConfig    `yaml:"stream"`
	Logging   logger.Settings `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	Retries   int           `yaml:"retries"`
	UserAgent string        `yaml:"user_agent"`
	Proxy     string        `yaml:"proxy"`
}

type InnerTubeConfig struct {
	ClientName    string `yaml:"client_name"`
	ClientVersion string `yaml:"client_version"`
}

type StreamConfig struct {
	ChunkSize  int64 `yaml:"chunk_size"`
	MaxRetries int   `yaml:"max_retries"`
	// RateLimit in bytes per second, 0 disables limiting.
	RateLimit int64 `yaml:"rate_limit"`
}

type MetricsConfig struct {
	// Textfile is a path for a Prometheus textfile-collector dump written after each run.
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load reads config from a YAML file and applies environment variable
// overrides. An empty path skips the file and starts from defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendInnerTube, BackendKkdai:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http.timeout must be non-negative")
	}
	if c.Stream.ChunkSize <= 0 {
		return fmt.Errorf("stream.chunk_size must be positive")
	}
	if c.Stream.RateLimit < 0 {
		return fmt.Errorf("stream.rate_limit must be non-negative")
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendInnerTube
	}
	cfg.Backend = strings.ToLower(cfg.Backend)
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = 30 * time.Second
	}
	if cfg.HTTP.Retries == 0 {
		cfg.HTTP.Retries = 3
	}
	if cfg.InnerTube.ClientName == "" {
		cfg.InnerTube.ClientName = "ANDROID"
	}
	if cfg.InnerTube.ClientVersion == "" {
		cfg.InnerTube.ClientVersion = "20.10.38"
	}
	if cfg.Stream.ChunkSize == 0 {
		cfg.Stream.ChunkSize = 1 << 20
	}
	if cfg.Stream.MaxRetries == 0 {
		cfg.Stream.MaxRetries = 3
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("YTSAVE_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("YTSAVE_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("YTSAVE_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Timeout = d
		}
	}
	if v := os.Getenv("YTSAVE_HTTP_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retries = n
		}
	}
	if v := os.Getenv("YTSAVE_USER_AGENT"); v != "" {
		cfg.HTTP.UserAgent = v
	}
	if v := os.Getenv("YTSAVE_PROXY"); v != "" {
		cfg.HTTP.Proxy = v
	}
	if v := os.Getenv("YTSAVE_RATE_LIMIT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Stream.RateLimit = n
		}
	}
	if v := os.Getenv("YTSAVE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("YTSAVE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("YTSAVE_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
}
