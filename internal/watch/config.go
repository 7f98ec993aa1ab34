package watch

import (
	"fmt"
	"time"
)

// Config controls polling behavior.
type Config struct {
	// BaseURL is the Spark API endpoint.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Interval between status checks for a single session, e.g. "3s".
	Interval string `yaml:"interval" mapstructure:"interval"`
	// MaxFailures is the number of consecutive poll failures after which a
	// session is locally marked failed and its poller stopped.
	MaxFailures int `yaml:"max_failures" mapstructure:"max_failures"`
	// RequestTimeout bounds a single status call, e.g. "10s".
	RequestTimeout string `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:3002"
	}
	if c.Interval == "" {
		c.Interval = "3s"
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.RequestTimeout == "" {
		c.RequestTimeout = "10s"
	}
}

// Validate checks the durations parse.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Interval); err != nil {
		return fmt.Errorf("invalid watch.interval %q: %w", c.Interval, err)
	}
	if _, err := time.ParseDuration(c.RequestTimeout); err != nil {
		return fmt.Errorf("invalid watch.request_timeout %q: %w", c.RequestTimeout, err)
	}
	return nil
}

// interval returns the parsed poll interval.
func (c *Config) interval() time.Duration {
	d, _ := time.ParseDuration(c.Interval)
	return d
}

// requestTimeout returns the parsed per-request timeout.
func (c *Config) requestTimeout() time.Duration {
	d, _ := time.ParseDuration(c.RequestTimeout)
	return d
}
