package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centralizes configuration loaded from the environment.
type Config struct {
	Port             int
	DBDSN            string
	RedisURL         string
	JWTSecret        string
	SessionTTL       time.Duration
	TelegramBotToken string
	TelegramAuthTTL  time.Duration
	AllowOrigins     []string
	RateLimitAuth    RateLimitConfig
	RateLimitAPI     RateLimitConfig
	RateLimitAdmin   RateLimitConfig
	ThrottlePublic   ThrottleConfig
}

// RateLimitConfig describes a fixed-window limit for sensitive operations.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// ThrottleConfig describes the transport-level per-IP throttle.
type ThrottleConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load reads environment variables and applies safe defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("invalid PORT")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN is required")
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 characters")
	}

	cfg.TelegramBotToken = strings.TrimSpace(getEnv("TELEGRAM_BOT_TOKEN", ""))
	if cfg.TelegramBotToken == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is required")
	}

	sessionTTL, err := parseDurationEnv("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.SessionTTL = sessionTTL

	authTTL, err := parseDurationEnv("TELEGRAM_AUTH_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.TelegramAuthTTL = authTTL

	allowOrigins := strings.Split(getEnv("ALLOW_ORIGINS", ""), ",")
	cfg.AllowOrigins = nil
	for _, origin := range allowOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	cfg.RateLimitAuth = RateLimitConfig{MaxRequests: 5, Window: time.Minute}
	cfg.RateLimitAPI = RateLimitConfig{MaxRequests: 30, Window: time.Minute}
	cfg.RateLimitAdmin = RateLimitConfig{MaxRequests: 50, Window: time.Minute}
	cfg.ThrottlePublic = ThrottleConfig{RequestsPerSecond: 10, Burst: 20}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return dur, nil
}
