package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Broker    BrokerConfig
	Creation  CreationConfig
	Auth      AuthConfig
	App       AppConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `validate:"required,numeric"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required,numeric"`
	User     string `validate:"required"`
	Password string
	DBName   string `validate:"required"`
	SSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns int32  `validate:"min=1"`
}

// Redis caching layer configuration
type CacheConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required,numeric"`
	User     string
	Password string
	TTL      time.Duration `validate:"gt=0"`
}

// BrokerConfig holds RabbitMQ settings. An empty URL disables event publishing.
type BrokerConfig struct {
	URL      string `validate:"omitempty,url"`
	Exchange string `validate:"required"`
}

// CreationConfig points at the external creation service
type CreationConfig struct {
	BaseURL string        `validate:"required,url"`
	Timeout time.Duration `validate:"gt=0"`
	// circuit breaker
	BreakerFailures uint32        `validate:"min=1"`
	BreakerTimeout  time.Duration `validate:"gt=0"`
}

// AuthConfig describes how session tokens issued by the auth service are read
type AuthConfig struct {
	Secret     string `validate:"required"`
	Issuer     string
	CookieName string `validate:"required"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment   string `validate:"oneof=development staging production"`
	SessionCookie string `validate:"required"`
	SessionMaxAge time.Duration
	QRSize        int `validate:"min=64,max=1024"`
	HistoryLimit  int `validate:"min=1,max=100"`
}

// TelemetryConfig holds tracing settings
type TelemetryConfig struct {
	ServiceName  string  `validate:"required"`
	OTLPEndpoint string  // empty means spans are not exported
	SampleRatio  float64 `validate:"gt=0,lte=1"`
}

// defaultAuthSecret is the development secret; production refuses it.
const defaultAuthSecret = "dev-change-me"

var (
	validate = validator.New()

	ErrInsecureAuthSecret = errors.New("AUTH_SECRET must be set to a non-default value in production")
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "qrform"),
			Password: getEnv("DB_PASSWORD", "qrform_secret"),
			DBName:   getEnv("DB_NAME", "qrform"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		},
		Cache: CacheConfig{
			Host:     getEnv("RDB_HOST", "localhost"),
			Port:     getEnv("RDB_PORT", "6379"),
			User:     getEnv("RDB_USER", ""),
			Password: getEnv("RDB_PASSWORD", ""),
			TTL:      getEnvDuration("CACHE_TTL", 10*time.Minute),
		},
		Broker: BrokerConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "qr.events"),
		},
		Creation: CreationConfig{
			BaseURL:         getEnv("CREATION_URL", "http://localhost:5000"),
			Timeout:         getEnvDuration("CREATION_TIMEOUT", 5*time.Second),
			BreakerFailures: uint32(getEnvInt("CREATION_BREAKER_FAILURES", 5)),
			BreakerTimeout:  getEnvDuration("CREATION_BREAKER_TIMEOUT", 30*time.Second),
		},
		Auth: AuthConfig{
			Secret:     getEnv("AUTH_SECRET", defaultAuthSecret),
			Issuer:     getEnv("AUTH_ISSUER", ""),
			CookieName: getEnv("AUTH_COOKIE", "session"),
		},
		App: AppConfig{
			Environment:   getEnv("APP_ENV", "development"),
			SessionCookie: getEnv("SESSION_COOKIE", "qrform_sid"),
			SessionMaxAge: getEnvDuration("SESSION_MAX_AGE", 30*24*time.Hour),
			QRSize:        getEnvInt("QR_SIZE", 260),
			HistoryLimit:  getEnvInt("HISTORY_LIMIT", 20),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "qrform"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			SampleRatio:  getEnvFloat("OTEL_TRACES_SAMPLE_RATIO", 1),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section against its struct tags
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.App.Environment == "production" && (c.Auth.Secret == "" || c.Auth.Secret == defaultAuthSecret) {
		return fmt.Errorf("invalid configuration: %w", ErrInsecureAuthSecret)
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// ConnectionString returns the Redis connection URL
func (c *CacheConfig) ConnectionString() string {
	return fmt.Sprintf("redis://%s:%s@%s:%s/0", c.User, c.Password, c.Host, c.Port)
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
