package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration from environment variables
type Config struct {
	// Application
	ServerPort      string
	Environment     string // NODE_ENV, logged only
	DistDir         string
	ShutdownTimeout time.Duration

	// Persistent store
	StoreBackend    string // memory, redis or sql
	StoreNamespace  string
	StoreQuotaBytes int
	PollInterval    time.Duration

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Database (hosted backend and sql store)
	DBDriver   string // mysql or sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	// Accounts
	SessionTTL    time.Duration
	AdminEmail    string // seeded as admin on startup when set
	AdminPassword string

	// OpenTelemetry
	MetricsEnabled            bool
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPHeaders   string // key1=value1,key2=value2
	OTELExporterOTLPInsecure  bool   // true for http://, false for https://
	OTELServiceName           string
	OTELServiceVersion        string
	OTELDeploymentEnvironment string
}

// LoadConfig loads configuration from .env file and environment variables with defaults
func LoadConfig() *Config {
	// .env is optional, only complain about real parse errors
	if err := godotenv.Load(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	environment := getEnv("NODE_ENV", "development")

	return &Config{
		// SERVER_PORT wins over PORT
		ServerPort:      getEnv("SERVER_PORT", getEnv("PORT", "3000")),
		Environment:     environment,
		DistDir:         getEnv("DIST_DIR", "dist"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		StoreBackend:    getEnv("STORE_BACKEND", "memory"),
		StoreNamespace:  getEnv("STORE_NAMESPACE", "storefront"),
		StoreQuotaBytes: getEnvInt("STORE_QUOTA_BYTES", 5<<20),
		PollInterval:    getEnvDuration("POLL_INTERVAL", 3*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "storefront"),
		SQLitePath: getEnv("SQLITE_PATH", "storefront.db"),

		SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		MetricsEnabled:            getEnvBool("METRICS_ENABLED", false),
		OTELExporterOTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		OTELExporterOTLPHeaders:   getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
		OTELExporterOTLPInsecure:  getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELServiceName:           getEnv("OTEL_SERVICE_NAME", "storefront"),
		OTELServiceVersion:        getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
		OTELDeploymentEnvironment: getEnv("OTEL_DEPLOYMENT_ENVIRONMENT", environment),
	}
}

// GetDSN returns the data source name for the configured SQL driver
func (c *Config) GetDSN() string {
	if c.DBDriver == "sqlite" {
		return "file:" + c.SQLitePath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true&charset=utf8mb4"
}

// GetServerPortInt returns the listen port as an integer
func (c *Config) GetServerPortInt() int {
	port, err := strconv.Atoi(c.ServerPort)
	if err != nil {
		return 3000
	}
	return port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if value == "true" || value == "1" || value == "yes" {
			return true
		}
		return false
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Printf("Warning: %s=%q is not an integer, using %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("3s") or plain milliseconds ("3000")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	log.Printf("Warning: %s=%q is not a duration, using %s", key, value, defaultValue)
	return defaultValue
}
