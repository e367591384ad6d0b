package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	ValidatorModeLocal  = "local"
	ValidatorModeRemote = "remote"
)

type Config struct {
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string
	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	FinishQueueName      string
	FinishLockPrefix     string
	FinishLockTTLSeconds int
	FinishPolicy         []string

	ValidatorMode    string
	ValidatorURL     string
	ValidatorTimeout time.Duration

	LogLevel  string
	LogFormat string
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:              getEnv("API_PORT", "8080"),
		JWTKey:               []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:               time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,
		DBDriver:             getEnv("DB_DRIVER", DriverPostgres),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "5432"),
		DBUser:               getEnv("DB_USER", "vscubing"),
		DBPassword:           getEnv("DB_PASSWORD", "vscubing"),
		DBName:               getEnv("DB_NAME", "vscubing"),
		DBSslMode:            getEnv("DB_SSLMODE", "disable"),
		SQLitePath:           getEnv("SQLITE_PATH", "vscubing.db"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvAsInt("REDIS_DB", 0),
		FinishQueueName:      getEnv("FINISH_QUEUE_NAME", "round_session_finish_queue"),
		FinishLockPrefix:     getEnv("FINISH_LOCK_PREFIX", "round_session_finish_lock"),
		FinishLockTTLSeconds: getEnvAsInt("FINISH_LOCK_TTL_SECONDS", 30),
		FinishPolicy:         getEnvAsList("FINISH_POLICY", []string{"all_submitted", "contest_ended"}),
		ValidatorMode:        getEnv("VALIDATOR_MODE", ValidatorModeLocal),
		ValidatorURL:         getEnv("VALIDATOR_URL", ""),
		ValidatorTimeout:     time.Duration(getEnvAsInt("VALIDATOR_TIMEOUT_MS", 3000)) * time.Millisecond,
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

// Validate rejects settings the rest of the service cannot act on.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.ValidatorMode {
	case ValidatorModeLocal:
	case ValidatorModeRemote:
		if c.ValidatorURL == "" {
			return fmt.Errorf("VALIDATOR_URL is required when VALIDATOR_MODE=%s", ValidatorModeRemote)
		}
	default:
		return fmt.Errorf("unsupported VALIDATOR_MODE %q", c.ValidatorMode)
	}
	if c.ValidatorTimeout <= 0 {
		return fmt.Errorf("VALIDATOR_TIMEOUT_MS must be positive")
	}
	if len(c.FinishPolicy) == 0 {
		return fmt.Errorf("FINISH_POLICY must name at least one policy")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
