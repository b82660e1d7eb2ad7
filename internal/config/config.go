package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	LogLevel  string
	LogFormat string

	OTLPEnabled       bool
	OTLPEndpoint      string
	OTLPProtocol      string
	OTLPSamplingRatio float64

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
	DBAutoMigrate     bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HTTPAddr       string
	APIKeyHash     string
	APIRateLimit   float64
	APIRateBurst   int
	SnowflakeNode  int64
	Gateway        GatewayConfig
	Reconciliation ReconciliationConfig
}

// GatewayConfig carries the bank gateway credentials and defaults.
type GatewayConfig struct {
	BaseURI       string
	UserName      string
	Password      string
	Token         string
	MerchantLogin string
	ReturnURL     string
	FailURL       string
	Timeout       time.Duration

	RateLimit float64
	RateBurst int

	BreakerMaxRequests  uint32
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
	BreakerFailureRatio float64
	BreakerMinRequests  uint32
}

type ReconciliationConfig struct {
	Interval    time.Duration
	Timeout     time.Duration
	BatchSize   int
	Concurrency int
	LockTTL     time.Duration
	Channel     string
}

const (
	GatewayProductionURI = "https://securepayments.sberbank.ru"
	GatewayTestURI       = "https://3dsec.sberbank.ru"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	defaultBaseURI := GatewayTestURI
	if environment == "production" {
		defaultBaseURI = GatewayProductionURI
	}

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "acquiring"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  environment,
		LogLevel:     strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
		LogFormat:    strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),

		OTLPEnabled:       getenvBool("OTEL_ENABLED", false),
		OTLPEndpoint:      strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317"))),
		OTLPProtocol:      strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
		OTLPSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "acquiring"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 50)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", true),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       int(getenvInt64("REDIS_DB", 0)),

		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		APIKeyHash:    strings.TrimSpace(getenv("API_KEY_HASH", "")),
		APIRateLimit:  getenvFloat("API_RATE_LIMIT", 0),
		APIRateBurst:  int(getenvInt64("API_RATE_BURST", 20)),
		SnowflakeNode: getenvInt64("SNOWFLAKE_NODE", 1),

		Gateway: GatewayConfig{
			BaseURI:       strings.TrimRight(getenv("ACQUIRING_BASE_URI", defaultBaseURI), "/"),
			UserName:      strings.TrimSpace(getenv("ACQUIRING_USERNAME", "")),
			Password:      getenv("ACQUIRING_PASSWORD", ""),
			Token:         strings.TrimSpace(getenv("ACQUIRING_TOKEN", "")),
			MerchantLogin: strings.TrimSpace(getenv("ACQUIRING_MERCHANT_LOGIN", "")),
			ReturnURL:     strings.TrimSpace(getenv("ACQUIRING_RETURN_URL", "")),
			FailURL:       strings.TrimSpace(getenv("ACQUIRING_FAIL_URL", "")),
			Timeout:       getenvDuration("ACQUIRING_TIMEOUT", 30*time.Second),

			RateLimit: getenvFloat("ACQUIRING_RATE_LIMIT", 20),
			RateBurst: int(getenvInt64("ACQUIRING_RATE_BURST", 40)),

			BreakerMaxRequests:  uint32(getenvInt64("ACQUIRING_BREAKER_MAX_REQUESTS", 1)),
			BreakerInterval:     getenvDuration("ACQUIRING_BREAKER_INTERVAL", time.Minute),
			BreakerTimeout:      getenvDuration("ACQUIRING_BREAKER_TIMEOUT", 30*time.Second),
			BreakerFailureRatio: getenvFloat("ACQUIRING_BREAKER_FAILURE_RATIO", 0.6),
			BreakerMinRequests:  uint32(getenvInt64("ACQUIRING_BREAKER_MIN_REQUESTS", 10)),
		},

		Reconciliation: ReconciliationConfig{
			Interval:    getenvDuration("RECONCILE_INTERVAL", 5*time.Minute),
			Timeout:     getenvDuration("RECONCILE_TIMEOUT", 4*time.Minute),
			BatchSize:   int(getenvInt64("RECONCILE_BATCH_SIZE", 100)),
			Concurrency: int(getenvInt64("RECONCILE_CONCURRENCY", 1)),
			LockTTL:     getenvDuration("RECONCILE_LOCK_TTL", 2*time.Minute),
			Channel:     getenv("RECONCILE_FAILURE_CHANNEL", "acquiring:reconcile:failed"),
		},
	}

	return cfg
}

// Validate checks settings the gateway cannot work without.
func (c Config) Validate() error {
	return c.Gateway.Validate()
}

// Validate reports the first missing gateway setting as a ConfigurationError.
func (g GatewayConfig) Validate() error {
	if strings.TrimSpace(g.BaseURI) == "" {
		return &ConfigurationError{Setting: "ACQUIRING_BASE_URI"}
	}
	if !g.HasCredentials() {
		return &ConfigurationError{Setting: "ACQUIRING_USERNAME/ACQUIRING_PASSWORD or ACQUIRING_TOKEN"}
	}
	if strings.TrimSpace(g.ReturnURL) == "" {
		return &ConfigurationError{Setting: "ACQUIRING_RETURN_URL"}
	}
	return nil
}

// HasCredentials reports whether a login pair or a token is configured.
func (g GatewayConfig) HasCredentials() bool {
	if g.UserName != "" && g.Password != "" {
		return true
	}
	return g.Token != ""
}

// AuthParams returns the authentication parameters merged into every gateway call.
// A login pair wins over a token when both are configured.
func (g GatewayConfig) AuthParams() map[string]any {
	if g.UserName != "" && g.Password != "" {
		return map[string]any{
			"userName": g.UserName,
			"password": g.Password,
		}
	}
	if g.Token != "" {
		return map[string]any{"token": g.Token}
	}
	return map[string]any{}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
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

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
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

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
