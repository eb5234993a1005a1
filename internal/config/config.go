package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Late-fee handling modes
const (
	LateFeeInformational = "informational"
	LateFeeAutoApply     = "auto_apply"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
	Receipt   ReceiptConfig   `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type SchedulerConfig struct {
	MaterializeSpec string `mapstructure:"SCHEDULER_MATERIALIZE_SPEC"`
	OverdueSpec     string `mapstructure:"SCHEDULER_OVERDUE_SPEC"`
	Timezone        string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type BusinessConfig struct {
	LateFeeMode         string        `mapstructure:"LATE_FEE_MODE"`
	RefundReopenEntries bool          `mapstructure:"REFUND_REOPEN_ENTRIES"`
	SummaryCacheTTL     time.Duration `mapstructure:"SUMMARY_CACHE_TTL"`
	ReceiptPrefix       string        `mapstructure:"RECEIPT_PREFIX"`
}

type ReceiptConfig struct {
	SchoolName string `mapstructure:"SCHOOL_NAME"`
	Address    string `mapstructure:"SCHOOL_ADDRESS"`
	Phone      string `mapstructure:"SCHOOL_PHONE"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("SERVER_READ_TIMEOUT", "15s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("SCHEDULER_MATERIALIZE_SPEC", "0 0 1 1 * *")
	viper.SetDefault("SCHEDULER_OVERDUE_SPEC", "0 30 0 * * *")
	viper.SetDefault("SCHEDULER_TIMEZONE", "Asia/Kolkata")
	viper.SetDefault("LATE_FEE_MODE", LateFeeInformational)
	viper.SetDefault("REFUND_REOPEN_ENTRIES", false)
	viper.SetDefault("SUMMARY_CACHE_TTL", "15m")
	viper.SetDefault("RECEIPT_PREFIX", "RCP")
	viper.SetDefault("SCHOOL_NAME", "School Fee Office")
	viper.SetDefault("SCHOOL_ADDRESS", "")
	viper.SetDefault("SCHOOL_PHONE", "")
	viper.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read from .env file (optional)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = viper.ReadInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Business.LateFeeMode != LateFeeInformational && c.Business.LateFeeMode != LateFeeAutoApply {
		return fmt.Errorf("LATE_FEE_MODE must be %q or %q", LateFeeInformational, LateFeeAutoApply)
	}

	if c.Business.SummaryCacheTTL <= 0 {
		return fmt.Errorf("SUMMARY_CACHE_TTL must be a positive duration")
	}

	if c.Business.ReceiptPrefix == "" {
		return fmt.Errorf("RECEIPT_PREFIX is required")
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE is invalid: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// AutoApplyLateFee reports whether the overdue sweep re-invoices late fees.
func (c *Config) AutoApplyLateFee() bool {
	return c.Business.LateFeeMode == LateFeeAutoApply
}
