// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`

	// OpenRouter side. OpenRouter keys look like "sk-or-...".
	OpenRouterAPIKey  string `env:"OPENROUTER_API_KEY" validate:"required,startswith=sk-"`
	OpenRouterBaseURL string `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	OpenRouterReferer string `env:"OPENROUTER_REFERER" envDefault:"https://www.home-assistant.io"`
	OpenRouterTitle   string `env:"OPENROUTER_TITLE" envDefault:"Home Assistant DeepSeek Control"`

	// Model parameters. Bounds match what the chat endpoint accepts sensibly.
	Model       string  `env:"MODEL" envDefault:"deepseek/deepseek-chat"`
	MaxTokens   int     `env:"MAX_TOKENS" envDefault:"500" validate:"min=1,max=1000"`
	Temperature float64 `env:"TEMPERATURE" envDefault:"0.7" validate:"min=0,max=1"`

	// Home Assistant side.
	HassBaseURL string `env:"HASS_BASE_URL" envDefault:"http://supervisor/core" validate:"required,url"`
	HassToken   string `env:"HASS_TOKEN" validate:"required"`

	// Entities the automation reads from and is allowed to act on.
	SensorEntities   []string `env:"SENSOR_ENTITIES" envSeparator:","`
	ActuatorEntities []string `env:"ACTUATOR_ENTITIES" envSeparator:","`

	// UpdateInterval drives the periodic automation cycle.
	UpdateInterval time.Duration `env:"UPDATE_INTERVAL" envDefault:"5m"`

	// Rate-limit recovery: initial exponential delay and its ceiling.
	RetryInitialDelay time.Duration `env:"RETRY_INITIAL_DELAY" envDefault:"60s"`
	RetryMaxDelay     time.Duration `env:"RETRY_MAX_DELAY" envDefault:"1h"`

	// TranscriptPath is the append-only raw prompt/reply log. Empty disables it.
	TranscriptPath string `env:"TRANSCRIPT_PATH" envDefault:"/config/deepseek_raw_responses.log"`

	// ActionTablePath optionally overrides the built-in domain/action whitelist
	// with a YAML mapping of domain -> action list.
	ActionTablePath string `env:"ACTION_TABLE_PATH"`

	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"30"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"ha-deepseek-control"`
}

// Load parses environment variables into a Config and validates field
// constraints (key format, token and temperature bounds).
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }
