package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "LOG_FORMAT", "MODEL_PATH",
		"FEATURES_PATH", "RATE_LIMIT_RPM", "RATE_LIMIT_BURST", "CORS_ALLOWED_ORIGINS", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_TRACES_SAMPLER_ARG"} {
		setEnv(t, key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultLogFormat, cfg.LogFormat)
	assert.Equal(t, DefaultModelPath, cfg.ModelPath)
	assert.Equal(t, DefaultFeaturesPath, cfg.FeaturesPath)
	assert.Equal(t, DefaultRateLimitRPM, cfg.RateLimitRPM)
	assert.Equal(t, DefaultRateLimitBurst, cfg.RateLimitBurst)
	assert.Empty(t, cfg.OTLPEndpoint)
	assert.Equal(t, DefaultTraceSampleRatio, cfg.TraceSampleRatio)
	assert.Empty(t, cfg.CORSOrigins)
	assert.True(t, cfg.IsDevelopment())
	assert.True(t, cfg.RateLimitEnabled())
}

func TestLoad_FromEnv(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "ENV", "production")
	setEnv(t, "LOG_LEVEL", "DEBUG")
	setEnv(t, "LOG_FORMAT", "json")
	setEnv(t, "MODEL_PATH", "/srv/model.json")
	setEnv(t, "FEATURES_PATH", "/srv/features.json")
	setEnv(t, "RATE_LIMIT_RPM", "0")
	setEnv(t, "OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	setEnv(t, "OTEL_TRACES_SAMPLER_ARG", "0.25")
	setEnv(t, "CORS_ALLOWED_ORIGINS", "https://clinic.example.com, ,https://intake.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "/srv/model.json", cfg.ModelPath)
	assert.Equal(t, "/srv/features.json", cfg.FeaturesPath)
	assert.False(t, cfg.RateLimitEnabled())
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, 0.25, cfg.TraceSampleRatio)
	assert.Equal(t, []string{"https://clinic.example.com", "https://intake.example.com"}, cfg.CORSOrigins)
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	setEnv(t, "RATE_LIMIT_BURST", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultRateLimitBurst, cfg.RateLimitBurst)
}

func TestLoad_RejectsBadEnv(t *testing.T) {
	setEnv(t, "ENV", "prod")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENV is invalid")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:         "8080",
			Env:          "development",
			LogLevel:     "info",
			LogFormat:    "text",
			ModelPath:    DefaultModelPath,
			FeaturesPath: DefaultFeaturesPath,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "non-numeric port", mutate: func(c *Config) { c.Port = "http" }, wantErr: "PORT"},
		{name: "empty port", mutate: func(c *Config) { c.Port = "" }, wantErr: "PORT"},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "LOG_LEVEL"},
		{name: "unknown log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "LOG_FORMAT"},
		{name: "no model path", mutate: func(c *Config) { c.ModelPath = "" }, wantErr: "MODEL_PATH"},
		{name: "no features path", mutate: func(c *Config) { c.FeaturesPath = "" }, wantErr: "FEATURES_PATH"},
		{name: "negative rate", mutate: func(c *Config) { c.RateLimitRPM = -1 }, wantErr: "RATE_LIMIT_RPM"},
		{name: "sample ratio above one", mutate: func(c *Config) { c.TraceSampleRatio = 1.5 }, wantErr: "OTEL_TRACES_SAMPLER_ARG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
