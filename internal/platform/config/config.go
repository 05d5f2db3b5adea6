package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "leasepack/pkg/platform/strings"
)

const envPrefix = "LEASEPACK_"

// Config is the full process configuration, built once in main and passed down.
type Config struct {
	Server      Server
	Database    Database
	Redis       RedisConfig
	Storage     Storage
	SMTP        SMTP
	Kafka       Kafka
	Webhook     Webhook
	Fulfillment Fulfillment
	Render      Render
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
}

// Database configures the Postgres ledger. An empty URL selects in-memory stores.
type Database struct {
	URL          string
	MaxOpenConns int
}

// RedisConfig configures the optional lock and webhook de-dup backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Storage configures the S3-compatible blob store. An empty endpoint selects memory.
type Storage struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// SMTP is empty by default; notifications are disabled without a host.
type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Kafka configures domain event publication. No brokers means events stay in process.
type Kafka struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Webhook holds the payment provider's signing secret.
type Webhook struct {
	Secret    string
	Tolerance time.Duration
}

// Fulfillment tunes the orchestrator. Tests build this directly.
type Fulfillment struct {
	UploadConcurrency    int
	StaleAfter           time.Duration
	SweepInterval        time.Duration
	NotificationsEnabled bool
	SubscriptionEnabled  bool
	LockTTL              time.Duration
	SupportEmail         string
}

// Render selects the document renderer.
type Render struct {
	PDFEnabled bool
	ChromePath string
	Timeout    time.Duration
}

// DefaultFulfillment returns the settings used when nothing is configured.
func DefaultFulfillment() Fulfillment {
	return Fulfillment{
		UploadConcurrency:    4,
		StaleAfter:           15 * time.Minute,
		SweepInterval:        time.Minute,
		NotificationsEnabled: true,
		LockTTL:              2 * time.Minute,
		SupportEmail:         "support@leasepack.example",
	}
}

// FromEnv builds the config from LEASEPACK_* environment variables so main stays lean.
func FromEnv() Config {
	def := DefaultFulfillment()
	return Config{
		Server: Server{
			Addr:            getenv("ADDR", ":8080"),
			RequestTimeout:  getenvDuration("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			LogLevel:        getenv("LOG_LEVEL", "info"),
		},
		Database: Database{
			URL:          getenv("DATABASE_URL", ""),
			MaxOpenConns: getenvInt("DATABASE_MAX_OPEN_CONNS", 20),
		},
		Redis: RedisConfig{
			URL:          getenv("REDIS_URL", ""),
			PoolSize:     getenvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getenvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getenvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Storage: Storage{
			Endpoint:      getenv("STORAGE_ENDPOINT", ""),
			AccessKey:     getenv("STORAGE_ACCESS_KEY", ""),
			SecretKey:     getenv("STORAGE_SECRET_KEY", ""),
			Bucket:        getenv("STORAGE_BUCKET", "documents"),
			UseSSL:        getenvBool("STORAGE_USE_SSL", true),
			PublicBaseURL: getenv("STORAGE_PUBLIC_BASE_URL", ""),
		},
		SMTP: SMTP{
			Host:     getenv("SMTP_HOST", ""),
			Port:     getenv("SMTP_PORT", "587"),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", ""),
			FromName: getenv("SMTP_FROM_NAME", "LeasePack"),
		},
		Kafka: Kafka{
			Brokers:  getenvList("KAFKA_BROKERS"),
			Topic:    getenv("KAFKA_TOPIC", "leasepack.orders"),
			ClientID: getenv("KAFKA_CLIENT_ID", "leasepack"),
		},
		Webhook: Webhook{
			Secret:    getenv("WEBHOOK_SECRET", ""),
			Tolerance: getenvDuration("WEBHOOK_TOLERANCE", 5*time.Minute),
		},
		Fulfillment: Fulfillment{
			UploadConcurrency:    getenvInt("UPLOAD_CONCURRENCY", def.UploadConcurrency),
			StaleAfter:           getenvDuration("STALE_AFTER", def.StaleAfter),
			SweepInterval:        getenvDuration("SWEEP_INTERVAL", def.SweepInterval),
			NotificationsEnabled: getenvBool("NOTIFICATIONS_ENABLED", def.NotificationsEnabled),
			SubscriptionEnabled:  getenvBool("SUBSCRIPTION_ENABLED", false),
			LockTTL:              getenvDuration("LOCK_TTL", def.LockTTL),
			SupportEmail:         getenv("SUPPORT_EMAIL", def.SupportEmail),
		},
		Render: Render{
			PDFEnabled: getenvBool("RENDER_PDF", false),
			ChromePath: getenv("CHROME_PATH", ""),
			Timeout:    getenvDuration("RENDER_TIMEOUT", 30*time.Second),
		},
	}
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(envPrefix + key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	parsed, err := strconv.Atoi(getenv(key, ""))
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	parsed, err := strconv.ParseBool(getenv(key, ""))
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	parsed, err := time.ParseDuration(getenv(key, ""))
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvList(key string) []string {
	return pstrings.SplitList(getenv(key, ""))
}
