package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	BcryptCost        int
	ThrottleThreshold int
	ThrottleLockout   time.Duration
	SessionTTL        time.Duration
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    string
	BaseDelayMs       int
	RandomDelayMs     int
	CleanupInterval   time.Duration
}

type EmailConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "gatehouse"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: parseCommaSeparated(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			BcryptCost:        getEnvAsInt("BCRYPT_COST", 10),
			ThrottleThreshold: getEnvAsInt("THROTTLE_THRESHOLD", 5),
			ThrottleLockout:   getEnvAsDuration("THROTTLE_LOCKOUT", 5*time.Minute),
			SessionTTL:        getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			CookieDomain:      getEnv("COOKIE_DOMAIN", ""),
			CookieSecure:      getEnvAsBool("COOKIE_SECURE", env == "production"),
			CookieSameSite:    getEnv("COOKIE_SAMESITE", "strict"),
			BaseDelayMs:       getEnvAsInt("LOGIN_BASE_DELAY_MS", 100),
			RandomDelayMs:     getEnvAsInt("LOGIN_RANDOM_DELAY_MS", 100),
			CleanupInterval:   getEnvAsDuration("FAILED_LOGIN_CLEANUP_INTERVAL", 1*time.Hour),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("LOCKOUT_EMAIL_ENABLED", false),
			AWSRegion:   getEnv("AWS_SES_REGION", "us-east-1"),
			FromAddress: getEnv("LOCKOUT_EMAIL_FROM", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateAuthConfig(&cfg.Auth, env); err != nil {
		return nil, err
	}

	if cfg.Email.Enabled && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("LOCKOUT_EMAIL_FROM is required when lockout emails are enabled")
	}

	return cfg, nil
}

// validateAuthConfig rejects settings that would silently weaken the
// login defenses
func validateAuthConfig(auth *AuthConfig, env string) error {
	if auth.BcryptCost < 4 || auth.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31 (got %d)", auth.BcryptCost)
	}
	if env == "production" && auth.BcryptCost < 10 {
		return fmt.Errorf("BCRYPT_COST must be at least 10 in production (got %d)", auth.BcryptCost)
	}
	if auth.ThrottleThreshold < 1 {
		return fmt.Errorf("THROTTLE_THRESHOLD must be at least 1 (got %d)", auth.ThrottleThreshold)
	}
	if auth.ThrottleLockout < time.Second {
		return fmt.Errorf("THROTTLE_LOCKOUT must be at least 1s (got %s)", auth.ThrottleLockout)
	}
	if auth.SessionTTL < time.Minute {
		return fmt.Errorf("SESSION_TTL must be at least 1m (got %s)", auth.SessionTTL)
	}

	switch auth.CookieSameSite {
	case "strict", "lax", "none":
	default:
		return fmt.Errorf("COOKIE_SAMESITE must be strict, lax, or none (got %q)", auth.CookieSameSite)
	}

	if env == "production" && !auth.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be enabled in production")
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return parseCommaSeparated(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
