// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
	StoreMySQL    = "mysql"
	StorePostgres = "postgres"
	CacheNone     = "none"
	CacheRedis    = "redis"
)

type Postgres struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

type Config struct {
	HTTPPort        string
	Env             string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	CartStore   string
	CartCache   string
	MongoURI    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string

	CatalogStore         string
	CatalogSQLitePath    string
	CatalogMySQLDSN      string
	CatalogSeedFile      string
	CatalogMigrationsDir string

	OrderStore         string
	Postgres           Postgres
	OrderMigrationsDir string

	KafkaBrokers     []string
	OrderEventsTopic string

	ReserveAttempts int
	ReserveBackoff  time.Duration
}

func Load() (*Config, error) {
	var errs []string
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	requestTimeout, err := getEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
	collect(err)
	shutdownTimeout, err := getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	collect(err)
	pgPort, err := getEnvInt("POSTGRES_PORT", 5432)
	collect(err)
	attempts, err := getEnvInt("RESERVE_ATTEMPTS", 3)
	collect(err)
	backoff, err := getEnvDuration("RESERVE_BACKOFF", 5*time.Millisecond)
	collect(err)

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		Env:             getEnv("SERVICE_ENV", "dev"),
		RequestTimeout:  requestTimeout,
		ShutdownTimeout: shutdownTimeout,

		CartStore:   getEnv("CART_STORE", StoreMemory),
		CartCache:   getEnv("CART_CACHE", CacheNone),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "cartdb"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		CatalogStore:         getEnv("CATALOG_STORE", StoreMemory),
		CatalogSQLitePath:    getEnv("CATALOG_SQLITE_PATH", "catalog.db"),
		CatalogMySQLDSN:      getEnv("CATALOG_MYSQL_DSN", "root:root@tcp(localhost:3306)/catalog?parseTime=true&multiStatements=true"),
		CatalogSeedFile:      getEnv("CATALOG_SEED_FILE", ""),
		CatalogMigrationsDir: getEnv("CATALOG_MIGRATIONS_DIR", "./migrations"),

		OrderStore: getEnv("ORDER_STORE", StoreMemory),
		Postgres: Postgres{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     pgPort,
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			DBName:   getEnv("POSTGRES_DB", "fulfillment"),
		},
		OrderMigrationsDir: getEnv("ORDER_MIGRATIONS_DIR", "./migrations/orders"),

		KafkaBrokers:     getEnvList("KAFKA_BROKERS"),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order-events"),

		ReserveAttempts: attempts,
		ReserveBackoff:  backoff,
	}

	collect(oneOf("CART_STORE", cfg.CartStore, StoreMemory, StoreMongo))
	collect(oneOf("CART_CACHE", cfg.CartCache, CacheNone, CacheRedis))
	collect(oneOf("CATALOG_STORE", cfg.CatalogStore, StoreMemory, StoreRedis, StoreSQLite, StoreMySQL))
	collect(oneOf("ORDER_STORE", cfg.OrderStore, StoreMemory, StorePostgres))
	if cfg.ReserveAttempts < 1 {
		errs = append(errs, "RESERVE_ATTEMPTS must be at least 1")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, value)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration", key, value)
	}
	return d, nil
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: %q is not one of %s", key, value, strings.Join(allowed, "|"))
}
