package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL   string
	MigrationsDir string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Completion service
	CompletionAPIKey         string
	CompletionBaseURL        string
	CompletionMaxTokens      int
	CompletionTemperature    float64
	CompletionConcurrentReqs int
	CompletionTimeoutSeconds int
	SystemPrompt             string

	// Model catalog
	ModelCatalogPath string

	// Retention
	ChatRetentionDays int
	RetentionSchedule string

	// Frontend
	FrontendURL string
}

const (
	DefaultCompletionBaseURL = "https://api-ai2.secry.me/v1"
	DefaultSystemPrompt      = "You are a helpful AI assistant."
)

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	env := getEnvOrDefault("ENV", "development")

	cfg := &Config{
		Port:                     getEnvOrDefault("PORT", "8080"),
		Env:                      env,
		LogLevel:                 getEnvOrDefault("LOG_LEVEL", defaultLogLevel(env)),
		DatabaseURL:              mustGetEnv("DATABASE_URL"),
		MigrationsDir:            getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		RedisURL:                 mustGetEnv("REDIS_URL"),
		JWTSecret:                mustGetEnv("JWT_SECRET"),
		CompletionAPIKey:         mustGetEnv("COMPLETION_API_KEY"),
		CompletionBaseURL:        getEnvOrDefault("COMPLETION_BASE_URL", DefaultCompletionBaseURL),
		CompletionMaxTokens:      getEnvAsIntOrDefault("COMPLETION_MAX_TOKENS", 100000),
		CompletionTemperature:    getEnvAsFloatOrDefault("COMPLETION_TEMPERATURE", 0.7),
		CompletionConcurrentReqs: getEnvAsIntOrDefault("COMPLETION_CONCURRENT_REQUESTS", 5),
		CompletionTimeoutSeconds: getEnvAsIntOrDefault("COMPLETION_TIMEOUT_SECONDS", 60),
		SystemPrompt:             getEnvOrDefault("SYSTEM_PROMPT", DefaultSystemPrompt),
		ModelCatalogPath:         getEnvOrDefault("MODEL_CATALOG_PATH", ""),
		ChatRetentionDays:        getEnvAsIntOrDefault("CHAT_RETENTION_DAYS", 0),
		RetentionSchedule:        getEnvOrDefault("RETENTION_SCHEDULE", "@daily"),
		FrontendURL:              getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
	}

	return cfg
}

// LoadForMigrations reads only what the migration command needs, so it can
// run in environments without Redis or completion credentials.
func LoadForMigrations() *Config {
	godotenv.Load()

	env := getEnvOrDefault("ENV", "development")
	return &Config{
		Env:           env,
		LogLevel:      getEnvOrDefault("LOG_LEVEL", defaultLogLevel(env)),
		DatabaseURL:   mustGetEnv("DATABASE_URL"),
		MigrationsDir: getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
	}
}

func defaultLogLevel(env string) string {
	if env == "production" {
		return "info"
	}
	return "debug"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
