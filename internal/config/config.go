package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Audit     AuditConfig
	Sweep     SweepConfig
	Dashboard DashboardConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type AuthConfig struct {
	JWTSecret      string
	InternalSecret string
	CookieName     string
}

type AuditConfig struct {
	SystemUserID uuid.UUID
	WriteTimeout time.Duration
}

type SweepConfig struct {
	Enabled  bool
	Schedule string
}

type DashboardConfig struct {
	RenewalWindowDays int
}

// DSN is the lib/pq keyword/value connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// URL is the form golang-migrate expects.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	systemUser, err := requireUUID("SYSTEM_USER_ID")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "subtrack"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 10),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "debug"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("JWT_SECRET", ""),
			InternalSecret: getEnv("INTERNAL_API_SECRET", ""),
			CookieName:     getEnv("AUTH_COOKIE_NAME", "token"),
		},
		Audit: AuditConfig{
			SystemUserID: systemUser,
			WriteTimeout: getEnvAsDuration("AUDIT_WRITE_TIMEOUT", 5),
		},
		Sweep: SweepConfig{
			Enabled:  getEnvAsBool("SWEEP_ENABLED", false),
			Schedule: getEnv("SWEEP_SCHEDULE", "5 0 * * *"),
		},
		Dashboard: DashboardConfig{
			RenewalWindowDays: getEnvAsInt("RENEWAL_WINDOW_DAYS", 30),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.Dashboard.RenewalWindowDays <= 0 {
		return nil, fmt.Errorf("RENEWAL_WINDOW_DAYS must be positive, got %d", cfg.Dashboard.RenewalWindowDays)
	}

	return cfg, nil
}

func requireUUID(key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%s is required", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%s must be a non-nil UUID, got %q", key, raw)
	}
	return id, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, seconds int) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(value) * time.Second
	}
	return time.Duration(seconds) * time.Second
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
