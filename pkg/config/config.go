// Package config loads the master's start-up configuration from a single
// YAML file, following the shape of the original config.toml (listener
// ports, worker/connection limits, TLS paths, the store directory, and the
// static frontend/backend lists) translated into the teacher's idiom of a
// tagged struct decoded with gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FrontendConfig declares one pre-registered edge frontend.
type FrontendConfig struct {
	Domain    string `yaml:"domain"`
	PublicIP  string `yaml:"public_ip"`
	PrivateIP string `yaml:"private_ip"`
	HTTPPort  int    `yaml:"http_port"`
	HTTPSPort int    `yaml:"https_port"`
}

// FrontendConfig's node id is derived, not configured: "<private_ip>:<http_port>".
func (f FrontendConfig) ID() string {
	return fmt.Sprintf("%s:%d", f.PrivateIP, f.HTTPPort)
}

// BackendConfig declares one pre-registered topic-sharded backend.
type BackendConfig struct {
	PrivateIP string `yaml:"private_ip"`
	HTTPPort  int    `yaml:"http_port"`
}

func (b BackendConfig) ID() string {
	return fmt.Sprintf("%s:%d", b.PrivateIP, b.HTTPPort)
}

// StoreConfig tunes the underlying key-value store.
type StoreConfig struct {
	// Path is resolved against the directory holding the configuration file
	// at load time if it is relative, and created if it does not exist.
	Path string `yaml:"path"`
}

// Config is the master's full start-up configuration.
type Config struct {
	HTTPPort          int    `yaml:"http_port"`
	HTTPSPort         int    `yaml:"https_port"`
	WorkerCount       int    `yaml:"worker_count"`
	MaxConnections    int    `yaml:"max_connections"`
	MaxConnectionRate int    `yaml:"max_connection_rate"`
	Backlog           int    `yaml:"backlog"`
	KeepAliveSeconds  int    `yaml:"keep_alive"`
	MaxFrameSize      int    `yaml:"max_frame_size"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`

	Store StoreConfig `yaml:"store"`

	Frontends []FrontendConfig `yaml:"frontends"`
	Backends  []BackendConfig  `yaml:"backends"`

	UnhealthyThresholdSeconds int64 `yaml:"unhealthy_threshold"`
	StaleThresholdSeconds     int64 `yaml:"stale_threshold"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

const (
	defaultMaxFrameSize = 128 << 20 // 128 MiB
	defaultWorkerCount  = 4
	defaultKeepAlive    = 60
)

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.resolveStorePath(filepath.Dir(path)); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = defaultMaxFrameSize
	}
	if c.WorkerCount == 0 {
		c.WorkerCount = defaultWorkerCount
	}
	if c.KeepAliveSeconds == 0 {
		c.KeepAliveSeconds = defaultKeepAlive
	}
	if c.UnhealthyThresholdSeconds == 0 {
		c.UnhealthyThresholdSeconds = 10
	}
	if c.StaleThresholdSeconds == 0 {
		c.StaleThresholdSeconds = 60
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) resolveStorePath(baseDir string) error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if !filepath.IsAbs(c.Store.Path) {
		c.Store.Path = filepath.Join(baseDir, c.Store.Path)
	}
	return os.MkdirAll(c.Store.Path, 0o755)
}

func (c *Config) validate() error {
	if c.StaleThresholdSeconds < c.UnhealthyThresholdSeconds {
		return fmt.Errorf("stale_threshold (%d) must be >= unhealthy_threshold (%d)",
			c.StaleThresholdSeconds, c.UnhealthyThresholdSeconds)
	}
	if c.HTTPPort == 0 && c.HTTPSPort == 0 {
		return fmt.Errorf("at least one of http_port or https_port must be set")
	}
	if c.HTTPSPort != 0 && (c.CertFile == "" || c.KeyFile == "") {
		return fmt.Errorf("https_port set but cert_file/key_file missing")
	}
	seen := make(map[string]bool, len(c.Frontends))
	for _, f := range c.Frontends {
		id := f.ID()
		if seen[id] {
			return fmt.Errorf("duplicate frontend id %s", id)
		}
		seen[id] = true
	}
	seen = make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		id := b.ID()
		if seen[id] {
			return fmt.Errorf("duplicate backend id %s", id)
		}
		seen[id] = true
	}
	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend must be configured")
	}
	return nil
}
