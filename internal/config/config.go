package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	RedisKeyPrefix        string
	DataDir               string
	AuthSecret            string
	AccessTokenTTLMinutes int
	Timezone              string
	LogLevel              string
	LogFormat             string
	SeedAdminName         string
	SeedAdminEmail        string
	SeedAdminPassword     string
	SeedDemoProducts      bool
	LoginMaxAttempts      int
	LoginWindowSeconds    int
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Variables already set win over the file.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	loginMax, err := strconv.Atoi(getEnv("LOGIN_MAX_ATTEMPTS", "5"))
	if err != nil || loginMax < 1 {
		loginMax = 5
	}
	loginWindow, err := strconv.Atoi(getEnv("LOGIN_WINDOW_SECONDS", "60"))
	if err != nil || loginWindow < 1 {
		loginWindow = 60
	}
	seedDemo, err := strconv.ParseBool(getEnv("SEED_DEMO_PRODUCTS", "true"))
	if err != nil {
		seedDemo = true
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		RedisKeyPrefix:        getEnv("REDIS_KEY_PREFIX", "forno"),
		DataDir:               strings.TrimSpace(os.Getenv("DATA_DIR")),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		Timezone:              getEnv("TIMEZONE", "America/Sao_Paulo"),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:             strings.ToLower(getEnv("LOG_FORMAT", "json")),
		SeedAdminName:         getEnv("SEED_ADMIN_NAME", "Administrador"),
		SeedAdminEmail:        strings.TrimSpace(os.Getenv("SEED_ADMIN_EMAIL")),
		SeedAdminPassword:     os.Getenv("SEED_ADMIN_PASSWORD"),
		SeedDemoProducts:      seedDemo,
		LoginMaxAttempts:      loginMax,
		LoginWindowSeconds:    loginWindow,
	}

	return cfg
}

// LoginWindow is the span over which LoginMaxAttempts is counted.
func (c Config) LoginWindow() time.Duration {
	return time.Duration(c.LoginWindowSeconds) * time.Second
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location resolves Timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
