// Package config loads shramba settings from defaults, an optional HuJSON
// file and the environment, in that order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/tailscale/hujson"
)

// EnvConfigPath names the config file when no path is given.
const EnvConfigPath = "SHRAMBA_CONFIG"

// Duration is a time.Duration that reads "90m" style strings from JSON.
type Duration time.Duration

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string or seconds: %w", err)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv  string `json:"app_env"`
	DBPath  string `json:"db"`
	Addr    string `json:"addr"`
	LogPath string `json:"log"`

	// Reminder scheduler
	ReminderEnabled     bool     `json:"reminder_enabled"`
	ReminderInterval    Duration `json:"reminder_interval"`
	ReminderConcurrency int      `json:"reminder_concurrency"`

	// Email
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"smtp_password"`
	SMTPFrom     string `json:"smtp_from"`

	// WhatsApp
	TwilioAccountSID   string `json:"twilio_account_sid"`
	TwilioAuthToken    string `json:"twilio_auth_token"`
	TwilioWhatsAppFrom string `json:"twilio_whatsapp_number"`
	TwilioBaseURL      string `json:"twilio_base_url"`
	DefaultCountryCode string `json:"default_country_code"`

	// Recipes
	SpoonacularAPIKey  string   `json:"spoonacular_api_key"`
	SpoonacularBaseURL string   `json:"spoonacular_base_url"`
	RedisURL           string   `json:"redis_url"`
	RecipeCacheTTL     Duration `json:"recipe_cache_ttl"`

	// Events
	RabbitMQURL string `json:"rabbitmq_url"`

	// Circuit breakers
	BreakerFailureThreshold int      `json:"breaker_failure_threshold"`
	BreakerTimeout          Duration `json:"breaker_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AppEnv:                  "development",
		DBPath:                  "shramba.db",
		Addr:                    ":8080",
		ReminderEnabled:         true,
		ReminderInterval:        Duration(time.Hour),
		ReminderConcurrency:     4,
		SMTPPort:                587,
		DefaultCountryCode:      "+91",
		RecipeCacheTTL:          Duration(24 * time.Hour),
		BreakerFailureThreshold: 5,
		BreakerTimeout:          Duration(time.Minute),
	}
}

// Load builds the configuration. A .env file in the working directory is
// loaded first if present. path, or $SHRAMBA_CONFIG when path is empty,
// names an optional HuJSON file; environment variables override it.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := json.Unmarshal(standardized, c); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.AppEnv = getEnv("APP_ENV", c.AppEnv)
	c.DBPath = getEnv("SHRAMBA_DB", c.DBPath)
	c.Addr = getEnv("SHRAMBA_ADDR", c.Addr)
	c.LogPath = getEnv("SHRAMBA_LOG", c.LogPath)

	c.ReminderEnabled = getBoolEnv("REMINDER_ENABLED", c.ReminderEnabled)
	c.ReminderInterval = Duration(getDurationEnv("REMINDER_INTERVAL", time.Duration(c.ReminderInterval)))
	c.ReminderConcurrency = getIntEnv("REMINDER_CONCURRENCY", c.ReminderConcurrency)

	c.SMTPHost = getEnv("SMTP_HOST", c.SMTPHost)
	c.SMTPPort = getIntEnv("SMTP_PORT", c.SMTPPort)
	c.SMTPUsername = getEnv("SMTP_USERNAME", c.SMTPUsername)
	c.SMTPPassword = getEnv("SMTP_PASSWORD", c.SMTPPassword)
	c.SMTPFrom = getEnv("SMTP_FROM", c.SMTPFrom)

	c.TwilioAccountSID = getEnv("TWILIO_ACCOUNT_SID", c.TwilioAccountSID)
	c.TwilioAuthToken = getEnv("TWILIO_AUTH_TOKEN", c.TwilioAuthToken)
	c.TwilioWhatsAppFrom = getEnv("TWILIO_WHATSAPP_NUMBER", c.TwilioWhatsAppFrom)
	c.TwilioBaseURL = getEnv("TWILIO_BASE_URL", c.TwilioBaseURL)
	c.DefaultCountryCode = getEnv("DEFAULT_COUNTRY_CODE", c.DefaultCountryCode)

	c.SpoonacularAPIKey = getEnv("SPOONACULAR_API_KEY", c.SpoonacularAPIKey)
	c.SpoonacularBaseURL = getEnv("SPOONACULAR_BASE_URL", c.SpoonacularBaseURL)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.RecipeCacheTTL = Duration(getDurationEnv("RECIPE_CACHE_TTL", time.Duration(c.RecipeCacheTTL)))

	c.RabbitMQURL = getEnv("RABBITMQ_URL", c.RabbitMQURL)

	c.BreakerFailureThreshold = getIntEnv("BREAKER_FAILURE_THRESHOLD", c.BreakerFailureThreshold)
	c.BreakerTimeout = Duration(getDurationEnv("BREAKER_TIMEOUT", time.Duration(c.BreakerTimeout)))
}

// Validate checks values that would make the server misbehave.
func (c *Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path must not be empty"))
	}
	if c.ReminderInterval <= 0 {
		errs = append(errs, errors.New("reminder_interval must be positive"))
	}
	if c.ReminderConcurrency < 1 {
		errs = append(errs, errors.New("reminder_concurrency must be at least 1"))
	}
	if c.BreakerFailureThreshold < 1 {
		errs = append(errs, errors.New("breaker_failure_threshold must be at least 1"))
	}
	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
