package utils

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Lock      LockConfig
	Pricing   PricingConfig
	RateLimit RateLimitConfig
	Notify    NotifyConfig
}

type AppConfig struct {
	Name            string
	Port            string
	Debug           bool
	LogPath         string
	StorageDriver   string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LockConfig struct {
	Driver string
	TTL    time.Duration
}

// PricingConfig holds the single source of the tax and platform commission rates.
type PricingConfig struct {
	TaxRate         float64
	PlatformFeeRate float64
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	IdleTTL           time.Duration
}

type NotifyConfig struct {
	Timeout time.Duration
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
	LockDriverLocal       = "local"
	LockDriverRedis       = "redis"
)

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	v.AutomaticEnv()

	return configFrom(v), nil
}

// a missing .env is fine, the environment still applies
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "service-marketplace")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 10)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_DRIVER", LockDriverLocal)
	v.SetDefault("LOCK_TTL_SECONDS", 10)
	v.SetDefault("PRICING_TAX_RATE", 0.08)
	v.SetDefault("PRICING_PLATFORM_FEE_RATE", 0.03)
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_IDLE_MINUTES", 15)
	v.SetDefault("NOTIFY_TIMEOUT_SECONDS", 5)
}

func configFrom(v *viper.Viper) *Config {
	return &Config{
		App: AppConfig{
			Name:            v.GetString("APP_NAME"),
			Port:            v.GetString("PORT"),
			Debug:           v.GetBool("DEBUG"),
			LogPath:         v.GetString("LOG_PATH"),
			StorageDriver:   v.GetString("STORAGE_DRIVER"),
			ShutdownTimeout: time.Duration(v.GetInt("SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASS"),
			MaxConns: v.GetInt32("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Lock: LockConfig{
			Driver: v.GetString("LOCK_DRIVER"),
			TTL:    time.Duration(v.GetInt("LOCK_TTL_SECONDS")) * time.Second,
		},
		Pricing: PricingConfig{
			TaxRate:         v.GetFloat64("PRICING_TAX_RATE"),
			PlatformFeeRate: v.GetFloat64("PRICING_PLATFORM_FEE_RATE"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:             v.GetInt("RATE_LIMIT_BURST"),
			IdleTTL:           time.Duration(v.GetInt("RATE_LIMIT_IDLE_MINUTES")) * time.Minute,
		},
		Notify: NotifyConfig{
			Timeout: time.Duration(v.GetInt("NOTIFY_TIMEOUT_SECONDS")) * time.Second,
		},
	}
}
