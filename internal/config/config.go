// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the process-wide settings of the server and the historian.
type Config struct {
	Port     string
	LogLevel logrus.Level

	TickRateHz    int
	MinReqPlayers int
	TargetRows    int
	MaxClients    int

	// RoomIdleTimeout removes a room that has had no users for this long,
	// counted from creation or from the last leave. 0 disables it.
	RoomIdleTimeout time.Duration
	// AllowedOrigins are the Origin patterns accepted on the websocket upgrade.
	AllowedOrigins []string

	RedisAddr string
	RedisDB   int

	QueueName  string
	BatchSize  int
	FlushDelay time.Duration

	PostgresUser     string
	PostgresPassword string
	PGHost           string
	PGPort           string
	PGDatabase       string

	// TokenExpire is the JWT lifetime, 0 means tokens never expire.
	TokenExpire time.Duration

	PersistenceEnabled bool
}

// Load reads the configuration from the environment. Malformed numbers fall
// back to their defaults; a malformed TOKEN_EXPIRE_TIME is an error.
func Load() (*Config, error) {
	expire, err := parseTokenExpire(os.Getenv("TOKEN_EXPIRE_TIME"))
	if err != nil {
		return nil, err
	}

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}

	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: level,

		TickRateHz:    getEnvInt("TICK_RATE_HZ", 20),
		MinReqPlayers: getEnvInt("MIN_REQ_PLAYERS", 2),
		TargetRows:    getEnvInt("TARGET_ROWS", 4),
		MaxClients:    getEnvInt("MAX_CLIENTS", 8),

		RoomIdleTimeout: time.Duration(getEnvInt("ROOM_IDLE_TIMEOUT_SEC", 60)) * time.Second,
		AllowedOrigins:  getEnvList("ALLOWED_ORIGINS", []string{"*"}),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvInt("REDIS_DB", 0),

		QueueName:  getEnv("HISTORIAN_QUEUE_NAME", "gallery_rounds"),
		BatchSize:  getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		FlushDelay: time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PGHost:           getEnv("PG_HOST", "localhost"),
		PGPort:           getEnv("PG_PORT", "5432"),
		PGDatabase:       os.Getenv("PG_DATABASE"),

		TokenExpire: expire,

		PersistenceEnabled: getEnvBool("PERSISTENCE_ENABLED", true),
	}, nil
}

// PostgresDSN assembles the connection string from the PG_* parts.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.PostgresUser, c.PostgresPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

func parseTokenExpire(s string) (time.Duration, error) {
	if s == "" || s == "never" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time %q: %w", s, err)
	}
	return d, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt returns def for missing, malformed or negative values.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return def
	}
	return v
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string, def []string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func getEnvBool(key string, def bool) bool {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}
