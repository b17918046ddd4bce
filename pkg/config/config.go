// Package config loads the archiver configuration.
//
// Sources are layered, later ones win:
//  1. Defaults: built-in values
//  2. Config File: optional YAML file (--config, ARCHIVER_CONFIG or archiver.yaml)
//  3. .env: loaded into the process environment, never overriding it
//  4. Environment Variables: USER_TOKEN, DB_LINK and ARCHIVER_*
//  5. Overrides: command line flags
//
// The loaded Config is validated before it is returned, so a missing token or
// base URL fails before any request is made.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Sternrassler/leaderboard-archiver/pkg/archive"
	"github.com/Sternrassler/leaderboard-archiver/pkg/logging"
	"github.com/Sternrassler/leaderboard-archiver/pkg/params"
	"github.com/Sternrassler/leaderboard-archiver/pkg/runstate"
)

var (
	// ErrMissingToken indicates USER_TOKEN is not set.
	ErrMissingToken = errors.New("missing required configuration: USER_TOKEN")

	// ErrMissingBaseURL indicates DB_LINK is not set.
	ErrMissingBaseURL = errors.New("missing required configuration: DB_LINK")
)

// Config is the archiver configuration. It is treated as immutable once
// loaded and passed by value.
type Config struct {
	// Token is sent in the Authorization header (REQUIRED)
	Token string `koanf:"token" validate:"required"`

	// BaseURL of the leaderboard service; requests go to BaseURL/api/getScores (REQUIRED)
	BaseURL string `koanf:"base_url" validate:"required,url"`

	UserAgent string `koanf:"user_agent"`

	// Fan-out
	Concurrency    int           `koanf:"concurrency" validate:"min=1,max=240"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`
	RateLimit      float64       `koanf:"rate_limit" validate:"gte=0"` // requests per second, 0 = unlimited

	// Archive
	OutputDir string `koanf:"output_dir" validate:"required"`
	DictCap   int    `koanf:"dict_cap" validate:"min=4096"`

	// Logging
	LogLevel  string `koanf:"log_level"`
	LogPretty bool   `koanf:"log_pretty"`

	// Optional Redis run coordination; empty disables it
	RedisAddr string        `koanf:"redis_addr"`
	LockTTL   time.Duration `koanf:"lock_ttl" validate:"gte=0"`

	// Optional Prometheus textfile output; empty disables it
	MetricsFile string `koanf:"metrics_file"`
}

// Default returns a Config with all default values and no credentials.
func Default() Config {
	return Config{
		UserAgent:      "leaderboard-archiver/1.0",
		Concurrency:    32,
		RequestTimeout: 30 * time.Second,
		RateLimit:      0,
		OutputDir:      archive.DefaultDir,
		DictCap:        archive.DefaultDictCap,
		LogLevel:       string(logging.LevelInfo),
		LogPretty:      false,
		LockTTL:        runstate.DefaultLockTTL,
	}
}

var validate = validator.New()

// Validate checks the configuration. Missing credentials are reported with
// ErrMissingToken and ErrMissingBaseURL.
func (c Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, fieldError(fe))
		}
	}

	if !logging.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error (got %q)", c.LogLevel))
	}

	return errors.Join(errs...)
}

func fieldError(fe validator.FieldError) error {
	switch {
	case fe.Field() == "Token" && fe.Tag() == "required":
		return ErrMissingToken
	case fe.Field() == "BaseURL" && fe.Tag() == "required":
		return ErrMissingBaseURL
	case fe.Field() == "BaseURL" && fe.Tag() == "url":
		return fmt.Errorf("DB_LINK must be an absolute URL (got %q)", fe.Value())
	case fe.Field() == "Concurrency":
		return fmt.Errorf("concurrency must be between 1 and %d (got %v)", params.Count, fe.Value())
	default:
		return fmt.Errorf("%s failed %q validation (got %v)", fe.Field(), fe.Tag()+paramSuffix(fe), fe.Value())
	}
}

func paramSuffix(fe validator.FieldError) string {
	if fe.Param() == "" {
		return ""
	}
	return "=" + fe.Param()
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.Token != "" {
		c.Token = "***"
	}
	return c
}
