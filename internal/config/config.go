package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides application configuration to the fx graph.
var Module = fx.Options(
	fx.Provide(Load),
	fx.Provide(NewFeePolicyHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	FeePolicyPath string

	PayMongo  PayMongoConfig
	RateLimit RateLimitConfig
}

// PayMongoConfig carries the gateway credentials. When SecretKey or
// WebhookSecret is empty the gateway endpoints report unavailable.
type PayMongoConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	LiveMode      bool
	SuccessURL    string
	CancelURL     string
}

// Configured reports whether the gateway can accept traffic.
func (c PayMongoConfig) Configured() bool {
	return c.SecretKey != "" && c.WebhookSecret != ""
}

type RateLimitConfig struct {
	Enabled      bool
	WebhookRate  float64
	WebhookBurst int
	LockTTLSec   int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "feeledger"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "feeledger"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		FeePolicyPath: getenv("FEE_POLICY_PATH", "fees.yml"),

		PayMongo: PayMongoConfig{
			BaseURL:       getenv("PAYMONGO_BASE_URL", "https://api.paymongo.com"),
			SecretKey:     strings.TrimSpace(getenv("PAYMONGO_SECRET_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("PAYMONGO_WEBHOOK_SECRET", "")),
			LiveMode:      getenvBool("PAYMONGO_LIVE_MODE", false),
			SuccessURL:    getenv("PAYMONGO_SUCCESS_URL", "http://localhost:3000/payments/success"),
			CancelURL:     getenv("PAYMONGO_CANCEL_URL", "http://localhost:3000/payments/cancelled"),
		},
		RateLimit: RateLimitConfig{
			Enabled:      getenvBool("RATE_LIMIT_ENABLED", false),
			WebhookRate:  getenvFloat("RATE_LIMIT_WEBHOOK_RATE", 20),
			WebhookBurst: getenvInt("RATE_LIMIT_WEBHOOK_BURST", 40),
			LockTTLSec:   getenvInt("RATE_LIMIT_LOCK_TTL", 30),
		},
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
