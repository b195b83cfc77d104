package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Sales    SalesConfig
}

type ServerConfig struct {
	AppEnv          string
	HTTPPort        string
	GRPCPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
	AutoMigrate     bool
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled            bool
	Brokers            []string
	SalesTopic         string
	RestockTopic       string
	GroupID            string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

type SalesConfig struct {
	GuestCustomerID string
	UntrackedPolicy string // allow | reject
	TotalPolicy     string // trust | verify
	TotalTolerance  decimal.Decimal
	IdempotencyTTL  time.Duration
}

// Validate fails on settings the service cannot run without.
func (s SalesConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(s.GuestCustomerID) == "" {
		errs = append(errs, errors.New("SALES_GUEST_CUSTOMER_ID is required"))
	}
	switch s.UntrackedPolicy {
	case "allow", "reject":
	default:
		errs = append(errs, fmt.Errorf("SALES_UNTRACKED_POLICY: unknown value %q", s.UntrackedPolicy))
	}
	switch s.TotalPolicy {
	case "trust", "verify":
	default:
		errs = append(errs, fmt.Errorf("SALES_TOTAL_POLICY: unknown value %q", s.TotalPolicy))
	}
	if s.TotalTolerance.IsNegative() {
		errs = append(errs, errors.New("SALES_TOTAL_TOLERANCE must not be negative"))
	}
	return errors.Join(errs...)
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:          getEnv("APP_ENV", "dev"),
			HTTPPort:        getEnv("HTTP_PORT", ":8080"),
			GRPCPort:        getEnv("GRPC_PORT", ":8083"),
			RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_sales"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
			AutoMigrate:     getEnvBool("POSTGRES_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled:            getEnvBool("KAFKA_ENABLED", true),
			Brokers:            getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			SalesTopic:         getEnv("KAFKA_TOPIC_SALES", "sales.events"),
			RestockTopic:       getEnv("KAFKA_TOPIC_RESTOCK", "inventory.restock"),
			GroupID:            getEnv("KAFKA_GROUP_SALES", "sales"),
			OutboxPollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", time.Second),
			OutboxBatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 100),
		},
		Sales: SalesConfig{
			GuestCustomerID: getEnv("SALES_GUEST_CUSTOMER_ID", ""),
			UntrackedPolicy: getEnv("SALES_UNTRACKED_POLICY", "allow"),
			TotalPolicy:     getEnv("SALES_TOTAL_POLICY", "trust"),
			TotalTolerance:  getEnvDecimal("SALES_TOTAL_TOLERANCE", decimal.RequireFromString("0.01")),
			IdempotencyTTL:  getEnvDuration("SALES_IDEMPOTENCY_TTL", 24*time.Hour),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}
