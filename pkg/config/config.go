package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App            AppConfig
	Server         ServerConfig
	Database       DatabaseConfig
	JWT            JWTConfig
	Redis          RedisConfig
	Recommendation RecommendationConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey string
}

type RedisConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	PoolSize      int
	DialTimeout   time.Duration
}

type RecommendationConfig struct {
	CacheEnabled           bool
	CacheBackend           string // memory | redis
	CacheTTL               time.Duration
	MaxRecommendations     int
	MinConfidenceThreshold float64
	HistoryLimit           int
	CoalesceInFlight       bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, errors.New("invalid redis database")
	}

	redisPool, err := getEnvInt("REDIS_POOL_SIZE", 10)
	if err != nil || redisPool <= 0 {
		return nil, errors.New("invalid redis pool size")
	}

	redisDial, err := time.ParseDuration(getEnv("REDIS_DIAL_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DIAL_TIMEOUT: %w", err)
	}

	reco, err := loadRecommendation()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Calculator Recommendation API"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "calc_reco"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", ""),
		},
		Redis: RedisConfig{
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
			PoolSize:      redisPool,
			DialTimeout:   redisDial,
		},
		Recommendation: reco,
	}

	if cfg.JWT.SecretKey == "" {
		return nil, errors.New("missing jwt secret")
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	return cfg, nil
}

func loadRecommendation() (RecommendationConfig, error) {
	var rc RecommendationConfig
	var err error

	if rc.CacheEnabled, err = getEnvBool("RECO_CACHE_ENABLED", true); err != nil {
		return rc, fmt.Errorf("invalid RECO_CACHE_ENABLED: %w", err)
	}
	if rc.CoalesceInFlight, err = getEnvBool("RECO_COALESCE_IN_FLIGHT", false); err != nil {
		return rc, fmt.Errorf("invalid RECO_COALESCE_IN_FLIGHT: %w", err)
	}
	if rc.MaxRecommendations, err = getEnvInt("RECO_MAX_RECOMMENDATIONS", 10); err != nil {
		return rc, fmt.Errorf("invalid RECO_MAX_RECOMMENDATIONS: %w", err)
	}
	if rc.HistoryLimit, err = getEnvInt("RECO_HISTORY_LIMIT", 500); err != nil {
		return rc, fmt.Errorf("invalid RECO_HISTORY_LIMIT: %w", err)
	}

	minConf := getEnv("RECO_MIN_CONFIDENCE", "0.1")
	if rc.MinConfidenceThreshold, err = strconv.ParseFloat(minConf, 64); err != nil {
		return rc, fmt.Errorf("invalid RECO_MIN_CONFIDENCE: %w", err)
	}
	// the engine reads 0 as "use the library default", so it is not a valid setting
	if rc.MinConfidenceThreshold <= 0 || rc.MinConfidenceThreshold > 1 {
		return rc, errors.New("RECO_MIN_CONFIDENCE must be within (0,1]")
	}

	// 0 keeps entries until the cache is cleared
	if rc.CacheTTL, err = time.ParseDuration(getEnv("RECO_CACHE_TTL", "0s")); err != nil {
		return rc, fmt.Errorf("invalid RECO_CACHE_TTL: %w", err)
	}

	rc.CacheBackend = getEnv("RECO_CACHE_BACKEND", "memory")
	if rc.CacheBackend != "memory" && rc.CacheBackend != "redis" {
		return rc, fmt.Errorf("unsupported RECO_CACHE_BACKEND %q", rc.CacheBackend)
	}

	return rc, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(val)
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(val)
}
