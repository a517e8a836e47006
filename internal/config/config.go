// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string `validate:"required,numeric"`
	Env       string `validate:"oneof=development staging production"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`

	// Model artifacts, read once at startup
	ModelPath    string `validate:"required"`
	FeaturesPath string `validate:"required"`

	// Rate limiting per client IP
	RateLimitRPM   int `validate:"gte=0"`
	RateLimitBurst int `validate:"gte=0"`

	// Browser origins allowed to call the API (comma separated)
	CORSOrigins []string `validate:"dive,required"`

	// Tracing (optional, disabled when empty)
	OTLPEndpoint     string
	TraceSampleRatio float64 `validate:"gte=0,lte=1"`
}

const (
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultModelPath      = "artifacts/diabetes_model.json"
	DefaultFeaturesPath   = "artifacts/model_features.json"
	DefaultRateLimitRPM   = 120
	DefaultRateLimitBurst = 20

	DefaultTraceSampleRatio = 1.0
)

var validate = validator.New()

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", DefaultPort),
		Env:            getEnv("ENV", DefaultEnv),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", DefaultLogLevel)),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", DefaultLogFormat)),
		ModelPath:      getEnv("MODEL_PATH", DefaultModelPath),
		FeaturesPath:   getEnv("FEATURES_PATH", DefaultFeaturesPath),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", DefaultRateLimitRPM),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", DefaultRateLimitBurst),
		CORSOrigins:    getEnvList("CORS_ALLOWED_ORIGINS"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		TraceSampleRatio: getEnvFloat("OTEL_TRACES_SAMPLER_ARG", DefaultTraceSampleRatio),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every setting holds an accepted value
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}
	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msgs[i] = fmt.Sprintf("%s is invalid (%s)", envName[fe.Field()], fe.Tag())
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
}

var envName = map[string]string{
	"Port":           "PORT",
	"Env":            "ENV",
	"LogLevel":       "LOG_LEVEL",
	"LogFormat":      "LOG_FORMAT",
	"ModelPath":      "MODEL_PATH",
	"FeaturesPath":   "FEATURES_PATH",
	"RateLimitRPM":   "RATE_LIMIT_RPM",
	"RateLimitBurst": "RATE_LIMIT_BURST",
	"CORSOrigins":    "CORS_ALLOWED_ORIGINS",

	"TraceSampleRatio": "OTEL_TRACES_SAMPLER_ARG",
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// RateLimitEnabled reports whether requests are throttled at all
func (c *Config) RateLimitEnabled() bool {
	return c.RateLimitRPM > 0
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
