package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Data     DataConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationsDir string
	Enabled       bool
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers       []string
	QuoteTopic    string
	SnapshotTopic string
	GroupID       string
	Enabled       bool
}

// RedisConfig holds the snapshot cache connection. The in-memory cache is
// used when disabled.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// DataConfig controls where project data comes from and how it is cleaned
type DataConfig struct {
	// BaseURL takes precedence over Dir when set
	BaseURL string
	Dir     string
	// Source is the project source used for the registry, csv or postgres
	Source              string
	CacheTTL            time.Duration
	MinTimeToExpiration float64
	RowMismatchPolicy   string
	UnparsablePolicy    string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			User:          getEnv("DB_USER", "postgres"),
			Password:      getEnv("DB_PASSWORD", "postgres"),
			DBName:        getEnv("DB_NAME", "optionsmonitor"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "db/migrations"),
			Enabled:       getEnvBool("DB_ENABLED", false),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvList("KAFKA_BROKERS", "localhost:9092"),
			QuoteTopic:    getEnv("KAFKA_QUOTE_TOPIC", "option-quotes"),
			SnapshotTopic: getEnv("KAFKA_SNAPSHOT_TOPIC", "option-snapshots"),
			GroupID:       getEnv("KAFKA_GROUP_ID", "options-monitor"),
			Enabled:       getEnvBool("KAFKA_ENABLED", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", false),
		},
		Data: DataConfig{
			BaseURL:             strings.TrimRight(getEnv("DATA_BASE_URL", ""), "/"),
			Dir:                 getEnv("DATA_DIR", "./docs"),
			Source:              getEnv("DATA_SOURCE", "csv"),
			CacheTTL:            getEnvDuration("CACHE_TTL", 15*time.Minute),
			MinTimeToExpiration: getEnvFloat("MIN_TIME_TO_EXPIRATION", 1.0),
			RowMismatchPolicy:   getEnv("ROW_MISMATCH_POLICY", "drop"),
			UnparsablePolicy:    getEnv("UNPARSABLE_NUMBER_POLICY", "keep"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Validate checks the values Load cannot fall back from
func (c *Config) Validate() error {
	if c.Data.Source != "csv" && c.Data.Source != "postgres" {
		return fmt.Errorf("invalid DATA_SOURCE: %s", c.Data.Source)
	}
	if c.Data.Source == "postgres" && !c.Database.Enabled {
		return fmt.Errorf("DATA_SOURCE=postgres requires DB_ENABLED=true")
	}
	if c.Data.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.Data.CacheTTL)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_ENABLED=true requires KAFKA_BROKERS")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Address returns host:port for the HTTP listener
func (s *ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
