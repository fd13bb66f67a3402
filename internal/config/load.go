package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
// For example, database.url is read from BATCHGEN_DATABASE_URL.
const EnvPrefix = "BATCHGEN"

// defaults holds every recognized key. Keys without a sensible default are
// listed with a zero value so that they are still bound to the environment.
var defaults = map[string]interface{}{
	"server.port":      8080,
	"server.log_level": "info",

	"database.url":               "",
	"database.max_open_conns":    10,
	"database.max_idle_conns":    5,
	"database.conn_max_lifetime": "5m",

	"auth.jwt_secret":             "",
	"auth.token_lifetime_minutes": 60,

	"provider.name":        "gemini",
	"provider.endpoint":    "",
	"provider.timeout":     "60s",
	"provider.model":       "gemini-2.5-flash-image",
	"provider.probe_model": "gemini-2.5-flash",
	"provider.text_model":  "gemini-2.5-flash",

	"generation.max_variations_per_prompt": 10,
	"generation.max_prompts":               100,
	"generation.placeholder_url":           "https://placehold.co/800x600/png?text=Generation+failed",
	"generation.submit_rate_per_minute":    10,

	"task.worker_count":           2,
	"task.queue_size":             100,
	"task.stuck_task_age_minutes": 30,

	"redis.url": "",

	"credentials.encryption_key": "",
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key := range defaults {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the struct tags on cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
