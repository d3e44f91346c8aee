package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	UploadDir string
	OutputDir string

	LogLevel string
	NoColor  bool

	ExtractAPIURL       string
	ExtractAPIToken     string
	ExtractBotID        string
	ExtractRateLimitRPS int
	ExtractTimeoutMs    int
	ExtractMaxRetries   int
	ExtractWorkers      int

	CacheTTLSec int

	VisaTypeColumn int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "cache.db")),
		UploadDir: getEnv("UPLOAD_DIR", filepath.Join(cwd, "data", "uploads")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		NoColor:  getEnvBool("NO_COLOR", false),

		ExtractAPIURL:       getEnv("EXTRACT_API_URL", "https://api.coze.cn/open_api/v2/chat"),
		ExtractAPIToken:     getEnv("EXTRACT_API_TOKEN", ""),
		ExtractBotID:        getEnv("EXTRACT_BOT_ID", ""),
		ExtractRateLimitRPS: getEnvInt("EXTRACT_RATE_LIMIT_RPS", 2),
		ExtractTimeoutMs:    getEnvInt("EXTRACT_TIMEOUT_MS", 60000),
		ExtractMaxRetries:   getEnvInt("EXTRACT_MAX_RETRIES", 5),
		ExtractWorkers:      getEnvInt("EXTRACT_WORKERS", 6),

		CacheTTLSec: getEnvInt("CACHE_TTL_SEC", 600),

		VisaTypeColumn: getEnvInt("VISA_TYPE_COLUMN", 16),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
