// Package config reads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ServiceName    = "orderflow"
	ServiceVersion = "0.1.0"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreMySQL  = "mysql"

	CatalogStore = "store"
	CatalogRedis = "redis"
)

const (
	LogsPath      = "/otlp/v1/logs"
	TracesPath    = "/otlp/v1/traces"
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	StoreBackend   string
	SQLitePath     string
	MySQLDSN       string
	CatalogBackend string
	RedisAddr      string
	SeedCatalog    bool

	WorkerCount     int
	QueueSize       int
	HandlerTimeout  time.Duration
	ShutdownTimeout time.Duration

	KafkaBroker     string
	KafkaAuditTopic string
	AMQPURL         string
	AMQPExchange    string

	OtelEndpoint   string
	OtelAuthHeader string
	LogLevel       string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// durenv accepts Go durations ("750ms", "30s"); a bare number is read as seconds.
func durenv(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if sec, err := strconv.Atoi(v); err == nil {
		return time.Duration(sec) * time.Second
	}
	return def
}

func boolenv(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Load collects configuration from environment with defaults and validates it.
func Load() (Config, error) {
	c := Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:        getenv("GRPC_ADDR", ":50051"),
		StoreBackend:    strings.ToLower(getenv("STORE_BACKEND", StoreMemory)),
		SQLitePath:      getenv("SQLITE_PATH", "orderflow.db"),
		MySQLDSN:        getenv("MYSQL_DSN", ""),
		CatalogBackend:  strings.ToLower(getenv("CATALOG_BACKEND", CatalogStore)),
		RedisAddr:       getenv("REDIS_ADDR", ""),
		SeedCatalog:     boolenv("SEED_CATALOG", true),
		WorkerCount:     atoienv("WORKER_COUNT", 10),
		QueueSize:       atoienv("QUEUE_SIZE", 1000),
		HandlerTimeout:  durenv("HANDLER_TIMEOUT", 30*time.Second),
		ShutdownTimeout: durenv("SHUTDOWN_TIMEOUT", 15*time.Second),
		KafkaBroker:     getenv("KAFKA_BROKER", ""),
		KafkaAuditTopic: getenv("KAFKA_AUDIT_TOPIC", "order-audit"),
		AMQPURL:         getenv("AMQP_URL", ""),
		AMQPExchange:    getenv("AMQP_EXCHANGE", "order_exchange"),
		OtelEndpoint:    getenv("OTEL_ENDPOINT", ""),
		OtelAuthHeader:  getenv("OTEL_AUTH_HEADER", ""),
		LogLevel:        getenv("LOG_LEVEL", "info"),
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when STORE_BACKEND=sqlite"))
		}
	case StoreMySQL:
		if c.MySQLDSN == "" {
			errs = append(errs, errors.New("MYSQL_DSN is required when STORE_BACKEND=mysql"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.CatalogBackend {
	case CatalogStore:
	case CatalogRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when CATALOG_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CATALOG_BACKEND %q", c.CatalogBackend))
	}

	if c.WorkerCount <= 0 {
		errs = append(errs, errors.New("WORKER_COUNT must be positive"))
	}
	if c.QueueSize < 0 {
		errs = append(errs, errors.New("QUEUE_SIZE must not be negative"))
	}
	if c.HandlerTimeout < 0 {
		errs = append(errs, errors.New("HANDLER_TIMEOUT must not be negative"))
	}
	if c.KafkaBroker != "" && c.KafkaAuditTopic == "" {
		errs = append(errs, errors.New("KAFKA_AUDIT_TOPIC is required when KAFKA_BROKER is set"))
	}
	if c.AMQPURL != "" && c.AMQPExchange == "" {
		errs = append(errs, errors.New("AMQP_EXCHANGE is required when AMQP_URL is set"))
	}
	return errors.Join(errs...)
}
