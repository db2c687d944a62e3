// Файл: config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type RedisConfig struct {
	Address  string
	Password string
	Enabled  bool
}

type SyncConfig struct {
	OverrideTTL       time.Duration
	CommitGraceWindow time.Duration
	SweepInterval     time.Duration
	DebounceInterval  time.Duration
	MinSearchLength   int
}

type ReportConfig struct {
	OutputDir string
}

type Config struct {
	Backend BackendConfig
	Redis   RedisConfig
	Sync    SyncConfig
	Report  ReportConfig
}

func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Предупреждение: .env файл не найден или не удалось его загрузить.")
	}

	return &Config{
		Backend: BackendConfig{
			BaseURL: getEnv("BACKEND_BASE_URL", "http://localhost:8080"),
			Timeout: getDurationEnv("BACKEND_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			Enabled:  getEnv("REDIS_OVERRIDE_CACHE", "") == "true",
		},
		Sync: SyncConfig{
			OverrideTTL:       getDurationEnv("OVERRIDE_TTL", time.Second*60),
			CommitGraceWindow: getDurationEnv("COMMIT_GRACE_WINDOW", time.Second*5),
			SweepInterval:     getDurationEnv("OVERRIDE_SWEEP_INTERVAL", time.Second*30),
			DebounceInterval:  getDurationEnv("SEARCH_DEBOUNCE", time.Millisecond*300),
			MinSearchLength:   getIntEnv("SEARCH_MIN_LENGTH", 2),
		},
		Report: ReportConfig{
			OutputDir: getEnv("REPORT_OUTPUT_DIR", "./reports"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Предупреждение: не удалось разобрать %s, используется значение по умолчанию %s", key, fallback)
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
