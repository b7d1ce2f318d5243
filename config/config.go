// Package config provides loading and parsing of stixgraph.yaml
// configuration files covering the Redis, etcd, export and edit-context
// settings of a deployment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of a stixgraph.yaml file.
type Config struct {
	// Redis configures the notification bus, edit contexts and queues.
	Redis RedisConfig `yaml:"redis"`

	// Etcd configures connector registration and discovery.
	Etcd EtcdConfig `yaml:"etcd"`

	// Export configures the export orchestrator.
	Export ExportConfig `yaml:"export,omitempty"`

	// ContextTTLSeconds bounds how long an abandoned edit context survives.
	ContextTTLSeconds int `yaml:"context_ttl_seconds,omitempty"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	// URL is the Redis connection URL (redis:// or rediss://).
	URL string `yaml:"url"`

	// DialTimeoutSeconds bounds connection establishment.
	DialTimeoutSeconds int `yaml:"dial_timeout_seconds,omitempty"`

	// ReadTimeoutSeconds bounds individual read operations.
	ReadTimeoutSeconds int `yaml:"read_timeout_seconds,omitempty"`
}

// EtcdConfig holds the etcd connection settings.
type EtcdConfig struct {
	// Endpoints lists the etcd cluster endpoints.
	Endpoints []string `yaml:"endpoints"`

	// Namespace prefixes every registry key. Default "stixgraph".
	Namespace string `yaml:"namespace,omitempty"`

	// TTLSeconds is the connector lease duration. Default 30.
	TTLSeconds int `yaml:"ttl_seconds,omitempty"`
}

// ExportConfig holds the export orchestrator settings.
type ExportConfig struct {
	// Directory is the destination context of export files when the caller
	// does not supply one.
	Directory string `yaml:"directory,omitempty"`

	// DefaultFormat is the export mime type used when unspecified.
	DefaultFormat string `yaml:"default_format,omitempty"`
}

// GetDialTimeout returns the configured dial timeout or the default.
func (r *RedisConfig) GetDialTimeout() time.Duration {
	if r == nil || r.DialTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.DialTimeoutSeconds) * time.Second
}

// GetReadTimeout returns the configured read timeout or the default.
func (r *RedisConfig) GetReadTimeout() time.Duration {
	if r == nil || r.ReadTimeoutSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(r.ReadTimeoutSeconds) * time.Second
}

// GetNamespace returns the configured namespace or the default.
func (e *EtcdConfig) GetNamespace() string {
	if e == nil || e.Namespace == "" {
		return "stixgraph"
	}
	return e.Namespace
}

// GetTTL returns the configured lease TTL or the default.
func (e *EtcdConfig) GetTTL() time.Duration {
	if e == nil || e.TTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(e.TTLSeconds) * time.Second
}

// GetDefaultFormat returns the configured export format or the default.
func (e *ExportConfig) GetDefaultFormat() string {
	if e == nil || e.DefaultFormat == "" {
		return "application/json"
	}
	return e.DefaultFormat
}

// GetContextTTL returns the configured edit-context TTL or the default.
func (c *Config) GetContextTTL() time.Duration {
	if c == nil || c.ContextTTLSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.ContextTTLSeconds) * time.Second
}

// Validate checks the settings a process cannot start without.
func (c *Config) Validate() error {
	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}
	if len(c.Etcd.Endpoints) == 0 {
		return fmt.Errorf("etcd.endpoints is required")
	}
	return nil
}

// Load reads and parses a stixgraph.yaml file from the given path. If the
// path is a directory, it looks for stixgraph.yaml or stixgraph.yml in
// that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		yamlPath := filepath.Join(path, "stixgraph.yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else {
			ymlPath := filepath.Join(path, "stixgraph.yml")
			if _, err := os.Stat(ymlPath); err != nil {
				return nil, fmt.Errorf("no stixgraph.yaml or stixgraph.yml found in %s", path)
			}
			configPath = ymlPath
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}
