package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port         string
	Environment  string
	ReadTimeout  int
	WriteTimeout int

	LogLevel  string
	LogFormat string

	DBPath              string
	AssetRoot           string
	PlaceholderPanorama string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	AssetCacheTTL time.Duration

	RemoteTimeout time.Duration
	RemoteRetries int

	SessionTTL    time.Duration
	FrameInterval time.Duration

	// TourURL is where the gateway forwards /api/v1 requests.
	TourURL string
}

// Load загружает конфигурацию из .env (если есть) и переменных окружения
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:         getEnv("PORT", "3000"),
		Environment:  getEnv("ENV", "development"),
		ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
		WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DBPath:              getEnv("DB_PATH", "./data/tour.db"),
		AssetRoot:           getEnv("ASSET_ROOT", "./data/assets"),
		PlaceholderPanorama: getEnv("PLACEHOLDER_PANORAMA", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		AssetCacheTTL: getEnvAsDuration("ASSET_CACHE_TTL", 24*time.Hour),

		RemoteTimeout: getEnvAsDuration("REMOTE_TIMEOUT", 15*time.Second),
		RemoteRetries: getEnvAsInt("REMOTE_RETRIES", 2),

		SessionTTL:    getEnvAsDuration("SESSION_TTL", 15*time.Minute),
		FrameInterval: getEnvAsDuration("FRAME_INTERVAL", time.Second/60),

		TourURL: getEnv("TOUR_URL", "http://localhost:3000"),
	}
}

// IsProduction reports whether ENV selects production behaviour.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// getEnvAsDuration принимает "30s", "5m" и т.п.; голое число считается секундами
func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}
