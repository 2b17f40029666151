package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string `yaml:"databaseURL" validate:"required"`

	// UpstreamBaseURL is the base URL of the shifts API bookings are made
	// against.
	UpstreamBaseURL string `yaml:"upstreamBaseURL" validate:"required,url"`

	UpstreamTimeoutSeconds int    `yaml:"upstreamTimeoutSeconds,omitempty" validate:"omitempty,min=1"`
	ListenAddr             string `yaml:"listenAddr,omitempty"`
	WorkerCount            int    `yaml:"workerCount,omitempty" validate:"omitempty,min=1"`
	PollIntervalSeconds    int    `yaml:"pollIntervalSeconds,omitempty" validate:"omitempty,min=1"`
	LockTTLMinutes         int    `yaml:"lockTTLMinutes,omitempty" validate:"omitempty,min=1"`
	MaxRetries             int    `yaml:"maxRetries,omitempty" validate:"omitempty,min=1"`
	RetryDelayMillis       int    `yaml:"retryDelayMillis,omitempty" validate:"omitempty,min=1"`
	MinBatchSize           int    `yaml:"minBatchSize,omitempty" validate:"omitempty,min=1"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// LoadWithEnv loads and validates the configuration with an environment
// suffix. For example, env="test" will look for "shiftsync_config.test.yaml".
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.UpstreamTimeoutSeconds == 0 {
		c.UpstreamTimeoutSeconds = 10
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8000"
	}
	if c.WorkerCount == 0 {
		c.WorkerCount = 2
	}
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = 5
	}
	if c.LockTTLMinutes == 0 {
		c.LockTTLMinutes = 10
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 6
	}
	if c.RetryDelayMillis == 0 {
		c.RetryDelayMillis = 500
	}
	if c.MinBatchSize == 0 {
		c.MinBatchSize = 10
	}
}

// UpstreamTimeout returns the upstream HTTP timeout as a duration
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}

// PollInterval returns the worker poll interval as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// LockTTL returns the request lock lease as a duration
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMinutes) * time.Minute
}

// RetryDelay returns the delay between booking attempts as a duration
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMillis) * time.Millisecond
}

// findConfigFile searches for the config file in current directory and home
// directory. If env is provided, it is added as an extension (e.g.,
// "shiftsync_config.test.yaml").
func findConfigFile(env string) (string, error) {
	configFileName := "shiftsync_config.yaml"
	if env != "" {
		configFileName = "shiftsync_config." + env + ".yaml"
	}

	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file not found in current directory or home directory")
}
