package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Factor names recognized in the scoring weight table.
const (
	FactorAge       = "age"
	FactorLocation  = "location"
	FactorReligion  = "religion"
	FactorLifestyle = "lifestyle"
	FactorEducation = "education"
	FactorHoroscope = "horoscope"
)

// Account tiers recognized in the quota tables.
const (
	TierFree    = "free"
	TierPremium = "premium"
)

type Config struct {
	App struct {
		ENV string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	HTTP struct {
		Host string
		Port string
	}

	Kafka struct {
		Enabled bool
		Brokers []string
		Topic   string
	}

	Async struct {
		PoolSize int
	}

	Engine Engine
}

// Engine holds the matching engine's policy values. Everything here is
// configuration, not code: factor weights, per-tier daily budgets, the
// day-boundary time zone, and the daily batch size.
type Engine struct {
	// Weights maps factor name -> weight. The defaults sum to 100 and the
	// scorer relies on that; overrides are normalized at load time so a
	// misconfigured table cannot break the 0-100 score bound.
	Weights map[string]float64

	DailyLikeLimit      map[string]int
	DailySuperLikeLimit map[string]int

	// Timezone is the fixed zone used for all day boundaries (quota reset,
	// daily batch dates). Deliberately not per-user local time.
	Timezone string

	DefaultBatchSize int
	DefaultPageSize  int
}

func New() *Config {
	cfg := &Config{}

	cfg.App.ENV = getEnvDefault("APP_ENV", "development")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "match_engine")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "sangam")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	if dbStr := getEnvDefault("REDIS_DB", "0"); dbStr != "" {
		if dbInt, err := strconv.Atoi(dbStr); err == nil {
			cfg.Redis.DB = dbInt
		}
	}

	// HTTP
	cfg.HTTP.Host = getEnvDefault("HTTP_HOST", "127.0.0.1")
	cfg.HTTP.Port = getEnvDefault("HTTP_PORT", "8080")

	// Kafka event sink (optional; the logging sink is used when disabled)
	cfg.Kafka.Enabled = isTruthy(os.Getenv("KAFKA_ENABLED"))
	cfg.Kafka.Brokers = splitCSV(getEnvDefault("KAFKA_BROKERS", "localhost:9092"))
	cfg.Kafka.Topic = getEnvDefault("KAFKA_TOPIC", "match-events")

	// Worker pool for fleet-wide batch generation
	cfg.Async.PoolSize = getEnvInt("ASYNC_POOL_SIZE", 16)

	cfg.Engine = newEngine()

	return cfg
}

func newEngine() Engine {
	e := Engine{
		Weights: map[string]float64{
			FactorAge:       getEnvFloat("WEIGHT_AGE", 20),
			FactorLocation:  getEnvFloat("WEIGHT_LOCATION", 15),
			FactorReligion:  getEnvFloat("WEIGHT_RELIGION", 20),
			FactorLifestyle: getEnvFloat("WEIGHT_LIFESTYLE", 15),
			FactorEducation: getEnvFloat("WEIGHT_EDUCATION", 15),
			FactorHoroscope: getEnvFloat("WEIGHT_HOROSCOPE", 15),
		},
		DailyLikeLimit: map[string]int{
			TierFree:    getEnvInt("DAILY_LIKES_FREE", 20),
			TierPremium: getEnvInt("DAILY_LIKES_PREMIUM", 100),
		},
		DailySuperLikeLimit: map[string]int{
			TierFree:    getEnvInt("DAILY_SUPER_LIKES_FREE", 1),
			TierPremium: getEnvInt("DAILY_SUPER_LIKES_PREMIUM", 10),
		},
		Timezone:         getEnvDefault("ENGINE_TIMEZONE", "UTC"),
		DefaultBatchSize: getEnvInt("DEFAULT_BATCH_SIZE", 10),
		DefaultPageSize:  getEnvInt("DEFAULT_PAGE_SIZE", 20),
	}

	// Normalize so env overrides cannot violate the "weights sum to 100"
	// invariant the scorer depends on.
	var sum float64
	for _, w := range e.Weights {
		sum += w
	}
	if sum > 0 && sum != 100 {
		for k, w := range e.Weights {
			e.Weights[k] = w * 100 / sum
		}
	}

	return e
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(k string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
