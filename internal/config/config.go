package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database     DatabaseConfig
	Server       ServerConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	Verification VerificationConfig
	Payments     PaymentsConfig
	Gateway      GatewayConfig
	Email        EmailConfig
	Background   BackgroundConfig
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

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
	BaseURL  string
}

type AuthConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

type RateLimitConfig struct {
	MaxFailedAttempts int
	Window            time.Duration
	BlockDuration     time.Duration
}

type VerificationConfig struct {
	TokenTTL   time.Duration
	CodeTTL    time.Duration
	CodeLength int
}

type PaymentsConfig struct {
	StripeSecretKey     string
	StripeWebhookSecret string
	SuccessURL          string
	CancelURL           string
}

type GatewayConfig struct {
	URL      string
	Username string
	APIKey   string
	Timeout  time.Duration
}

type EmailConfig struct {
	AWSRegion   string
	FromAddress string
}

type BackgroundConfig struct {
	Interval   time.Duration
	PendingTTL time.Duration // pending transactions older than this are failed
	RetryAfter time.Duration // completed-but-unfulfilled transactions older than this are retried
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")
	baseURL := getEnv("BASE_URL", "http://localhost:8080")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "tlux"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			Env:      env,
			LogLevel: getEnv("LOG_LEVEL", "info"),
			BaseURL:  baseURL,
		},
		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			MaxFailedAttempts: getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
			Window:            getEnvAsDuration("LOGIN_ATTEMPT_WINDOW", 10*time.Minute),
			BlockDuration:     getEnvAsDuration("LOGIN_BLOCK_DURATION", 10*time.Minute),
		},
		Verification: VerificationConfig{
			TokenTTL:   getEnvAsDuration("VERIFICATION_TOKEN_TTL", 48*time.Hour),
			CodeTTL:    getEnvAsDuration("VERIFICATION_CODE_TTL", 10*time.Minute),
			CodeLength: getEnvAsInt("VERIFICATION_CODE_LENGTH", 6),
		},
		Payments: PaymentsConfig{
			StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:          getEnv("CHECKOUT_SUCCESS_URL", baseURL+"/dashboard?success=1"),
			CancelURL:           getEnv("CHECKOUT_CANCEL_URL", baseURL+"/dashboard?canceled=1"),
		},
		Gateway: GatewayConfig{
			URL:      getEnv("DHRU_API_URL", "https://bulk.iremove.tools/api/dhru/api/index.php"),
			Username: getEnv("DHRU_USERNAME", ""),
			APIKey:   getEnv("DHRU_API_KEY", ""),
			Timeout:  getEnvAsDuration("DHRU_TIMEOUT", 30*time.Second),
		},
		Email: EmailConfig{
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM", "no-reply@t-lux.store"),
		},
		Background: BackgroundConfig{
			Interval:   getEnvAsDuration("REAPER_INTERVAL", 15*time.Minute),
			PendingTTL: getEnvAsDuration("PENDING_TX_TTL", 24*time.Hour),
			RetryAfter: getEnvAsDuration("FULFILLMENT_RETRY_AFTER", 5*time.Minute),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if env == "production" {
		if cfg.Payments.StripeSecretKey == "" || cfg.Payments.StripeWebhookSecret == "" {
			return nil, fmt.Errorf("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required in production")
		}
		if len(jwtSecret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters in production (got %d)", len(jwtSecret))
		}
	}

	return cfg, nil
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

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
