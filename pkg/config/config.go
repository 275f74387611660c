// Package config centralises env-var driven configuration. Every
// sub-config lives in its own file (notifx.go, ssoauth.go) and is
// loaded by a loadXConfig() function built on the getEnv* helpers
// below — the teacher's own shape, not a library like viper.
package config

import (
	"os"
	"strconv"
	"time"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// DatabaseConfig configures the sqlx Postgres connection.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	Driver          string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		Name:            getEnv("DB_NAME", "ssoauth"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		Driver:          getEnv("DB_DRIVER", "postgres"),
		SQLitePath:      getEnv("DB_SQLITE_PATH", "./ssoauth.db"),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Address() string {
	return r.Host + ":" + strconv.Itoa(r.Port)
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnvInt("REDIS_PORT", 6379),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}

// Config aggregates every sub-config the composition root needs.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Notifx   NotifxConfig
	SSOAuth  SSOAuthConfig
}

func Load() *Config {
	return &Config{
		Database: loadDatabaseConfig(),
		Redis:    loadRedisConfig(),
		Notifx:   loadNotifxConfig(),
		SSOAuth:  loadSSOAuthConfig(),
	}
}
