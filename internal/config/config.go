package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the process-wide settings of the accelerator tools.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// MetricsAddr is where /health, /status and /metrics are served.
	// Empty disables the server.
	MetricsAddr string `yaml:"metrics_addr"`

	PollInterval time.Duration `yaml:"poll_interval"`
	WaitTimeout  time.Duration `yaml:"wait_timeout"`
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level: %q (must be debug, info, warn or error)", c.LogLevel)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log_format: %q (must be console or json)", c.LogFormat)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("invalid poll_interval: %s (must be positive)", c.PollInterval)
	}
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("invalid wait_timeout: %s (must be positive)", c.WaitTimeout)
	}
	if c.WaitTimeout < c.PollInterval {
		return fmt.Errorf("wait_timeout (%s) < poll_interval (%s)", c.WaitTimeout, c.PollInterval)
	}
	return nil
}

func Default() Config {
	return Config{
		LogLevel:     "info",
		LogFormat:    "console",
		MetricsAddr:  ":9090",
		PollInterval: 50 * time.Microsecond,
		WaitTimeout:  5 * time.Second,
	}
}
