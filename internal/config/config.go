package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database" validate:"required"`
	Auth        AuthConfig        `mapstructure:"auth" validate:"required"`
	Provider    ProviderConfig    `mapstructure:"provider" validate:"required"`
	Generation  GenerationConfig  `mapstructure:"generation" validate:"required"`
	Task        TaskConfig        `mapstructure:"task" validate:"required"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Credentials CredentialsConfig `mapstructure:"credentials" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gt=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// AuthConfig holds the settings used to verify tokens issued by the
// external identity provider.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// ProviderConfig configures the image generation provider client.
type ProviderConfig struct {
	// Name selects the provider implementation.
	Name string `mapstructure:"name" validate:"required,oneof=gemini openai"`

	// Endpoint overrides the provider base URL. Empty means the SDK default.
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`

	// Timeout bounds a single provider call, including reference image download.
	Timeout time.Duration `mapstructure:"timeout" validate:"required,gt=0"`

	// Model is the image model used for generation.
	Model string `mapstructure:"model" validate:"required"`

	// ProbeModel is the model used for the minimal credential validation call.
	ProbeModel string `mapstructure:"probe_model" validate:"required"`

	// TextModel writes video scripts and extracts characters.
	TextModel string `mapstructure:"text_model" validate:"required"`
}

// GenerationConfig bounds what a single submission may request.
type GenerationConfig struct {
	MaxVariationsPerPrompt int    `mapstructure:"max_variations_per_prompt" validate:"required,gte=1,lte=10"`
	MaxPrompts             int    `mapstructure:"max_prompts" validate:"required,gte=1"`
	PlaceholderURL         string `mapstructure:"placeholder_url" validate:"required,url"`
	SubmitRatePerMinute    int    `mapstructure:"submit_rate_per_minute" validate:"required,gt=0"`
}

// TaskConfig configures the background task runner.
type TaskConfig struct {
	WorkerCount         int `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize           int `mapstructure:"queue_size" validate:"required,gt=0"`
	StuckTaskAgeMinutes int `mapstructure:"stuck_task_age_minutes" validate:"required,gt=0"`
}

// RedisConfig enables cross-process progress delivery. When URL is empty
// progress is fanned out in-process only.
type RedisConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// CredentialsConfig holds the key used to seal provider API keys at rest.
// EncryptionKey is 32 bytes, hex encoded.
type CredentialsConfig struct {
	EncryptionKey string `mapstructure:"encryption_key" validate:"required,len=64,hexadecimal"`
}
