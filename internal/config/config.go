package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite  = "sqlite"
	DriverCouchDB = "couchdb"
)

const devJWTSecret = "dev-secret-change-in-production"

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	AI        AIConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

type DatabaseConfig struct {
	Driver     string
	SQLitePath string

	// CouchDB connection, used when Driver is couchdb.
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// CouchURL builds the CouchDB DSN with credentials.
func (c *DatabaseConfig) CouchURL() string {
	u := url.URL{
		Scheme: "http",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + c.Port,
	}
	return u.String()
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type AIConfig struct {
	URL   string
	Model string
	// APIKey may be empty; AI requests then fail with a configuration error
	// while the note endpoints keep working.
	APIKey  string
	Timeout time.Duration
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Enabled           bool
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type LoggingConfig struct {
	Level string
}

// SlogLevel parses Level, defaulting to info.
func (c *LoggingConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load reads the environment, after applying envFile when it exists. A
// missing envFile is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	jwtExp, err := time.ParseDuration(getEnv("JWT_EXPIRATION", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION: %w", err)
	}

	aiTimeout, err := time.ParseDuration(getEnv("AI_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid AI_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("STORE_DRIVER", DriverSQLite)),
			SQLitePath: getEnv("SQLITE_PATH", "./smart-notes.db"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5984"),
			User:       getEnv("DB_USER", "admin"),
			Password:   getEnv("DB_PASSWORD", "password"),
			Name:       getEnv("DB_NAME", "smart-notes"),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", devJWTSecret),
			Expiration: jwtExp,
		},
		AI: AIConfig{
			URL:     getEnv("AI_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1/chat/completions"),
			Model:   getEnv("AI_MODEL", "google/gemini-2.5-flash"),
			APIKey:  getEnv("AI_API_KEY", os.Getenv("LOVABLE_API_KEY")),
			Timeout: aiTimeout,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 60),
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "authorization, x-client-info, apikey, content-type"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Port, validation.Required, validation.By(isPort)),
	); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Driver, validation.Required, validation.In(DriverSQLite, DriverCouchDB)),
		validation.Field(&c.Database.SQLitePath, validation.When(c.Database.Driver == DriverSQLite, validation.Required)),
		validation.Field(&c.Database.Host, validation.When(c.Database.Driver == DriverCouchDB, validation.Required)),
		validation.Field(&c.Database.Name, validation.When(c.Database.Driver == DriverCouchDB, validation.Required)),
	); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := validation.ValidateStruct(&c.JWT,
		validation.Field(&c.JWT.Secret, validation.Required,
			validation.When(c.Server.IsProduction(), validation.NotIn(devJWTSecret).Error("must be changed in production"))),
		validation.Field(&c.JWT.Expiration, validation.Required, validation.Min(time.Second)),
	); err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	if err := validation.ValidateStruct(&c.AI,
		validation.Field(&c.AI.URL, validation.Required),
		validation.Field(&c.AI.Model, validation.Required),
		validation.Field(&c.AI.Timeout, validation.Required, validation.Min(time.Second)),
	); err != nil {
		return fmt.Errorf("ai: %w", err)
	}

	if err := validation.ValidateStruct(&c.RateLimit,
		validation.Field(&c.RateLimit.RequestsPerMinute, validation.When(c.RateLimit.Enabled, validation.Required, validation.Min(1))),
	); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	return nil
}

func isPort(value interface{}) error {
	s, _ := value.(string)
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return errors.New("must be a port number")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
