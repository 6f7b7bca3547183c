package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	ReportTimezone         string
	ReportCacheTTLSeconds  int
	LiveSeedLimit          int
	DeadStockThresholdDays int
	AuthSecret             string
	AccessTokenTTLMinutes  int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cacheTTL, err := strconv.Atoi(getEnv("REPORT_CACHE_TTL_SECONDS", "30"))
	if err != nil || cacheTTL < 1 {
		cacheTTL = 30
	}
	seedLimit, err := strconv.Atoi(getEnv("LIVE_SEED_LIMIT", "50"))
	if err != nil || seedLimit < 1 {
		seedLimit = 50
	}
	deadStockDays, err := strconv.Atoi(getEnv("DEAD_STOCK_THRESHOLD_DAYS", "90"))
	if err != nil || deadStockDays < 1 {
		deadStockDays = 90
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}

	cfg := Config{
		Port:                   getEnv("PORT", "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                redisDB,
		ReportTimezone:         getEnv("REPORT_TIMEZONE", "Asia/Kolkata"),
		ReportCacheTTLSeconds:  cacheTTL,
		LiveSeedLimit:          seedLimit,
		DeadStockThresholdDays: deadStockDays,
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  tokenTTL,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
