package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar is the environment variable that can set the config file path.
const ConfigPathEnvVar = "ARCHIVER_CONFIG"

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"archiver.yaml",
	"archiver.yml",
}

// DefaultEnvFile is loaded into the environment when present.
const DefaultEnvFile = ".env"

// envMappings maps environment variables to config keys. Unmapped variables
// are ignored.
var envMappings = map[string]string{
	"user_token": "token",
	"db_link":    "base_url",

	"archiver_user_agent":      "user_agent",
	"archiver_concurrency":     "concurrency",
	"archiver_request_timeout": "request_timeout",
	"archiver_rate_limit":      "rate_limit",
	"archiver_output_dir":      "output_dir",
	"archiver_dict_cap":        "dict_cap",
	"archiver_log_level":       "log_level",
	"archiver_log_pretty":      "log_pretty",
	"archiver_redis_addr":      "redis_addr",
	"archiver_lock_ttl":        "lock_ttl",
	"archiver_metrics_file":    "metrics_file",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// LoadOptions controls Load.
type LoadOptions struct {
	// ConfigPath is an explicit YAML file; it must exist when set.
	ConfigPath string

	// EnvFile is a dotenv file (default DefaultEnvFile); missing is fine.
	EnvFile string

	// SkipEnvFile disables dotenv loading.
	SkipEnvFile bool

	// Override is applied after all sources, before validation.
	Override func(*Config)

	// SkipValidation returns the merged configuration unchecked, for
	// commands that make no leaderboard requests.
	SkipValidation bool
}

// Load builds the configuration from all sources and validates it.
func Load(opts LoadOptions) (Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return Config{}, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: .env into the process environment
	if !opts.SkipEnvFile {
		if err := loadEnvFile(opts.EnvFile); err != nil {
			return Config{}, err
		}
	}

	// Layer 4: environment variables
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Config{}
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Layer 5: overrides
	if opts.Override != nil {
		opts.Override(&cfg)
	}

	if opts.SkipValidation {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// resolveConfigPath returns the config file to load, or "" for none.
func resolveConfigPath(explicit string) (string, error) {
	if explicit == "" {
		explicit = os.Getenv(ConfigPathEnvVar)
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// loadEnvFile loads path (default .env) without overriding set variables.
func loadEnvFile(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
