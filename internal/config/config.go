// Package config loads the application configuration from config.yml and the
// environment, with per-section defaults and validation.
package config

import (
	"fmt"

	"github.com/sparklabs/spark/internal/api"
	"github.com/sparklabs/spark/internal/logger"
	"github.com/sparklabs/spark/internal/server"
	"github.com/sparklabs/spark/internal/storage"
	"github.com/sparklabs/spark/internal/watch"
)

// TranscriptionConfig selects and configures the speech-to-text backend.
type TranscriptionConfig struct {
	// Provider is the registered provider name.
	Provider string `yaml:"provider" mapstructure:"provider"`
	// Settings holds provider-specific options passed to its factory.
	Settings map[string]any `yaml:"settings" mapstructure:"settings"`
}

// ApplyDefaults fills zero-valued fields.
func (c *TranscriptionConfig) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "assemblyai"
	}
	if c.Settings == nil {
		c.Settings = make(map[string]any)
	}
}

// TokensConfig configures transcript token counting.
type TokensConfig struct {
	// Model selects the tiktoken encoding.
	Model string `yaml:"model" mapstructure:"model"`
}

// Config is the root application configuration.
type Config struct {
	Name          string              `yaml:"name" mapstructure:"name"`
	Environment   string              `yaml:"environment" mapstructure:"environment"`
	Version       string              `yaml:"version" mapstructure:"version"`
	Debug         bool                `yaml:"debug" mapstructure:"debug"`
	Logging       logger.Config       `yaml:"logging" mapstructure:"logging"`
	Server        server.Config       `yaml:"server" mapstructure:"server"`
	Database      storage.Config      `yaml:"database" mapstructure:"database"`
	Uploads       api.UploadConfig    `yaml:"uploads" mapstructure:"uploads"`
	Transcription TranscriptionConfig `yaml:"transcription" mapstructure:"transcription"`
	Tokens        TokensConfig        `yaml:"tokens" mapstructure:"tokens"`
	Watch         watch.Config        `yaml:"watch" mapstructure:"watch"`
}

// ApplyDefaults applies defaults to every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "spark-api"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Uploads.ApplyDefaults()
	c.Transcription.ApplyDefaults()
	c.Watch.ApplyDefaults()
}

// Validate validates every section.
func (c *Config) Validate() error {
	validEnvs := []string{"development", "staging", "production"}
	found := false
	for _, v := range validEnvs {
		if c.Environment == v {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("config.environment must be one of [development, staging, production] (got: %s)", c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("config.server: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("config.database: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("config.watch: %w", err)
	}
	return nil
}
