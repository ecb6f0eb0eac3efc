package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Log       LogConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Limits    LimitsConfig
	Geo       GeoConfig
	Tracing   TracingConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host string
	Port int
}

// StoreConfig contains the JSON document store configuration
type StoreConfig struct {
	DataRoot string
	CacheTTL time.Duration
	Backups  bool
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// AuthConfig contains JWT authentication configuration
type AuthConfig struct {
	Enabled       bool
	JWTSecret     string
	JWTExpiry     time.Duration
	RefreshExpiry time.Duration
	Issuer        string
	PublicPaths   []string
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool
	RequestsPerSec  float64
	Burst           int
	CleanupInterval time.Duration
}

// LimitsConfig contains marketplace business limits
type LimitsConfig struct {
	MaxListingsPerUser  int
	MaxTagsPerListing   int
	MaxImagesPerListing int
	MaxSearchRadiusKm   float64
}

// GeoConfig contains fallback coordinates for records without a location
type GeoConfig struct {
	DefaultLatitude  float64
	DefaultLongitude float64
	DefaultAddress   string
	DefaultRadiusKm  float64
}

// TracingConfig contains OpenTelemetry tracing configuration
type TracingConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRatio  float64
	InsecureConn   bool
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getEnvString("BAZAR_HOST", ""),
			Port: getEnvInt("BAZAR_PORT", 8080),
		},
		Store: StoreConfig{
			DataRoot: getEnvString("BAZAR_DATA_ROOT", "./data"),
			CacheTTL: getEnvDuration("BAZAR_CACHE_TTL", 5*time.Minute),
			Backups:  getEnvBool("BAZAR_BACKUPS_ENABLED", true),
		},
		Log: LogConfig{
			Level:  getEnvString("BAZAR_LOG_LEVEL", "info"),
			Format: getEnvString("BAZAR_LOG_FORMAT", "text"),
		},
		Auth: AuthConfig{
			Enabled:       getEnvBool("BAZAR_AUTH_ENABLED", false),
			JWTSecret:     getEnvString("BAZAR_JWT_SECRET", ""),
			JWTExpiry:     getEnvDuration("BAZAR_JWT_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvDuration("BAZAR_REFRESH_EXPIRY", 7*24*time.Hour),
			Issuer:        getEnvString("BAZAR_JWT_ISSUER", "bazar"),
			PublicPaths:   getEnvStringSlice("BAZAR_PUBLIC_PATHS", []string{"/health", "/health/live", "/health/ready", "/metrics", "/auth/login", "/auth/refresh"}),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvBool("BAZAR_RATE_LIMIT_ENABLED", false),
			RequestsPerSec:  getEnvFloat("BAZAR_RATE_LIMIT_REQUESTS_PER_SEC", 100.0),
			Burst:           getEnvInt("BAZAR_RATE_LIMIT_BURST", 20),
			CleanupInterval: getEnvDuration("BAZAR_RATE_LIMIT_CLEANUP", 5*time.Minute),
		},
		Limits: LimitsConfig{
			MaxListingsPerUser:  getEnvInt("BAZAR_MAX_LISTINGS_PER_USER", 50),
			MaxTagsPerListing:   getEnvInt("BAZAR_MAX_TAGS_PER_LISTING", 5),
			MaxImagesPerListing: getEnvInt("BAZAR_MAX_IMAGES_PER_LISTING", 5),
			MaxSearchRadiusKm:   getEnvFloat("BAZAR_MAX_SEARCH_RADIUS_KM", 50),
		},
		Geo: GeoConfig{
			DefaultLatitude:  getEnvFloat("BAZAR_DEFAULT_LATITUDE", 40.7128),
			DefaultLongitude: getEnvFloat("BAZAR_DEFAULT_LONGITUDE", -74.0060),
			DefaultAddress:   getEnvString("BAZAR_DEFAULT_ADDRESS", "New York, NY"),
			DefaultRadiusKm:  getEnvFloat("BAZAR_DEFAULT_RADIUS_KM", 50),
		},
		Tracing: TracingConfig{
			Enabled:        getEnvBool("BAZAR_TRACING_ENABLED", false),
			Endpoint:       getEnvString("BAZAR_TRACING_ENDPOINT", "otel-collector:4318"),
			ServiceName:    getEnvString("BAZAR_TRACING_SERVICE_NAME", "bazar"),
			ServiceVersion: getEnvString("BAZAR_TRACING_SERVICE_VERSION", "1.0.0"),
			Environment:    getEnvString("BAZAR_TRACING_ENVIRONMENT", "development"),
			SamplingRatio:  getEnvFloat("BAZAR_TRACING_SAMPLING_RATIO", 1.0),
			InsecureConn:   getEnvBool("BAZAR_TRACING_INSECURE", true),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.Store.DataRoot == "" {
		return fmt.Errorf("data root must not be empty")
	}

	if c.Store.CacheTTL <= 0 {
		return fmt.Errorf("invalid cache TTL: %v (must be positive)", c.Store.CacheTTL)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT secret must be specified when auth is enabled")
		}
		if c.Auth.JWTExpiry <= 0 {
			return fmt.Errorf("JWT expiry must be positive")
		}
		if c.Auth.RefreshExpiry <= 0 {
			return fmt.Errorf("refresh expiry must be positive")
		}
		if c.Auth.Issuer == "" {
			return fmt.Errorf("JWT issuer must be specified when auth is enabled")
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSec <= 0 {
			return fmt.Errorf("rate limit requests per second must be positive")
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate limit burst must be positive")
		}
	}

	if c.Limits.MaxListingsPerUser <= 0 {
		return fmt.Errorf("max listings per user must be positive")
	}

	if c.Limits.MaxSearchRadiusKm <= 0 {
		return fmt.Errorf("max search radius must be positive")
	}

	if c.Geo.DefaultLatitude < -90 || c.Geo.DefaultLatitude > 90 {
		return fmt.Errorf("invalid default latitude: %f", c.Geo.DefaultLatitude)
	}

	if c.Geo.DefaultLongitude < -180 || c.Geo.DefaultLongitude > 180 {
		return fmt.Errorf("invalid default longitude: %f", c.Geo.DefaultLongitude)
	}

	return nil
}

// Address returns the server address in host:port format
func (c *Config) Address() string {
	if c.Server.Host == "" {
		return fmt.Sprintf(":%d", c.Server.Port)
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvString gets a string environment variable with a default value
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvStringSlice gets a comma-separated string environment variable as a slice
func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		result := []string{}
		for _, v := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
