package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "SPARK_"

// LoaderOption customizes Load.
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	configFile string
	envFile    string
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(o *loaderOptions) { o.configFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(o *loaderOptions) { o.envFile = path }
}

// Load reads config.yml and the environment into cfg, applies defaults and
// validates the result. A missing config file is not an error; env vars with
// the SPARK_ prefix override file values, and ASSEMBLYAI_API_KEY is bound to
// the transcription provider settings.
func Load(cfg *Config, opts ...LoaderOption) error {
	var o loaderOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.configFile == "" {
		o.configFile = findFile("config.yml")
	}
	if o.envFile == "" {
		o.envFile = findFile(".env")
	}

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			fmt.Fprintf(os.Stderr, "[config] warning: failed to load env file %s: %v\n", o.envFile, err)
		}
	}

	v := viper.New()
	if o.configFile != "" {
		if _, err := os.Stat(o.configFile); err == nil {
			v.SetConfigFile(o.configFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file %s: %w", o.configFile, err)
			}
		}
	}

	bindEnvOverrides(v)

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg.Validate()
}

// findFile searches standard locations for a file, closest first.
func findFile(name string) string {
	searchPaths := []string{
		fmt.Sprintf("./cmd/spark-api/%s", name),
		fmt.Sprintf("../cmd/spark-api/%s", name),
		fmt.Sprintf("../../cmd/spark-api/%s", name),
		fmt.Sprintf("./%s", name),
		fmt.Sprintf("../%s", name),
	}
	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// bindEnvOverrides maps SPARK_-prefixed environment variables onto nested
// viper keys, so SPARK_SERVER_PORT overrides server.port. Viper's
// AutomaticEnv does not surface keys absent from the config file, so each
// override is applied with an explicit Set, in every plausible nesting:
// SPARK_SERVER_MAX_BODY_SIZE sets server.max_body_size as well as
// server.max.body.size.
func bindEnvOverrides(v *viper.Viper) {
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key, value := pair[0], pair[1]

		if key == "ASSEMBLYAI_API_KEY" {
			v.Set("transcription.settings.api_key", value)
			continue
		}
		if !strings.HasPrefix(key, envPrefix) {
			continue
		}
		for _, variant := range envKeyVariants(strings.TrimPrefix(key, envPrefix)) {
			v.Set(variant, value)
		}
	}
}

func envKeyVariants(key string) []string {
	parts := strings.Split(strings.ToLower(key), "_")
	if len(parts) == 1 {
		return parts
	}
	variants := []string{strings.Join(parts, ".")}
	for i := 1; i < len(parts); i++ {
		variant := strings.Join(parts[:i], ".") + "." + strings.Join(parts[i:], "_")
		variants = append(variants, variant)
	}
	return variants
}
