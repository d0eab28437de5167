// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Redis       RedisConfig
	AWS         AWSConfig
	Billing     BillingConfig
	Engine      EngineConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL int // in hours
}

type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	EventChannel string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
}

type BillingConfig struct {
	StripeSecretKey string
	Currency        string
}

// EngineConfig holds every lifecycle/pricing tunable. It is passed explicitly
// into the pricing engine and the renewal orchestrator so both stay pure and
// testable instead of reading ambient state.
type EngineConfig struct {
	StandardRateAdjustmentPct float64 // base renewal uplift, percent
	LoyaltyDiscountPctPerTerm float64 // per prior renewal
	LoyaltyDiscountCapPct     float64
	EarlyRenewalDiscountPct   float64 // per 30 days of lead time
	EarlyRenewalCapPct        float64
	EarlyRenewalMinLeadDays   int
	PerformanceSwingCapPct    float64
	MarketRatePullPct         float64 // fraction of the gap closed, percent
	FeeFloorMinor             int64   // absolute floor, minor units
	FeeCeilingMultiple        float64 // cap relative to original fee

	RenewalWindowDays    int // offer window before end date
	RenewalGraceDays     int // window after expiry
	OfferValidityDays    int
	RenewalTermDays      int // default child term when parent term is odd
	ExpiringSoonLeadDays int

	AutoApproveExtensionDays int
	MaxExtensionDays         int
	AmendmentDeadlineMaxDays int
	MinTerminationReasonLen  int

	RequireSignature  bool
	TxRetryAttempts   int
	SweepIntervalMin  int
	SweepBatchSize    int
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "license_engine"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL: getEnvAsInt("JWT_ACCESS_TTL", 24),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			EventChannel: getEnv("REDIS_EVENT_CHANNEL", "license.events"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "license-engine-agreements"),
		},
		Billing: BillingConfig{
			StripeSecretKey: getEnv("STRIPE_SECRET_KEY", ""),
			Currency:        getEnv("BILLING_CURRENCY", "usd"),
		},
		Engine: EngineConfig{
			StandardRateAdjustmentPct: getEnvAsFloat("ENGINE_STANDARD_RATE_PCT", 5.0),
			LoyaltyDiscountPctPerTerm: getEnvAsFloat("ENGINE_LOYALTY_PCT_PER_TERM", 2.5),
			LoyaltyDiscountCapPct:     getEnvAsFloat("ENGINE_LOYALTY_CAP_PCT", 10.0),
			EarlyRenewalDiscountPct:   getEnvAsFloat("ENGINE_EARLY_PCT_PER_30D", 2.5),
			EarlyRenewalCapPct:        getEnvAsFloat("ENGINE_EARLY_CAP_PCT", 7.5),
			EarlyRenewalMinLeadDays:   getEnvAsInt("ENGINE_EARLY_MIN_LEAD_DAYS", 30),
			PerformanceSwingCapPct:    getEnvAsFloat("ENGINE_PERFORMANCE_CAP_PCT", 10.0),
			MarketRatePullPct:         getEnvAsFloat("ENGINE_MARKET_PULL_PCT", 50.0),
			FeeFloorMinor:             getEnvAsInt64("ENGINE_FEE_FLOOR_MINOR", 10000),
			FeeCeilingMultiple:        getEnvAsFloat("ENGINE_FEE_CEILING_MULTIPLE", 2.0),

			RenewalWindowDays:    getEnvAsInt("ENGINE_RENEWAL_WINDOW_DAYS", 90),
			RenewalGraceDays:     getEnvAsInt("ENGINE_RENEWAL_GRACE_DAYS", 30),
			OfferValidityDays:    getEnvAsInt("ENGINE_OFFER_VALIDITY_DAYS", 14),
			RenewalTermDays:      getEnvAsInt("ENGINE_RENEWAL_TERM_DAYS", 365),
			ExpiringSoonLeadDays: getEnvAsInt("ENGINE_EXPIRING_SOON_LEAD_DAYS", 30),

			AutoApproveExtensionDays: getEnvAsInt("ENGINE_AUTO_APPROVE_EXTENSION_DAYS", 14),
			MaxExtensionDays:         getEnvAsInt("ENGINE_MAX_EXTENSION_DAYS", 365),
			AmendmentDeadlineMaxDays: getEnvAsInt("ENGINE_AMENDMENT_DEADLINE_MAX_DAYS", 30),
			MinTerminationReasonLen:  getEnvAsInt("ENGINE_MIN_TERMINATION_REASON_LEN", 20),

			RequireSignature: getEnvAsBool("ENGINE_REQUIRE_SIGNATURE", true),
			TxRetryAttempts:  getEnvAsInt("ENGINE_TX_RETRY_ATTEMPTS", 3),
			SweepIntervalMin: getEnvAsInt("ENGINE_SWEEP_INTERVAL_MIN", 15),
			SweepBatchSize:   getEnvAsInt("ENGINE_SWEEP_BATCH_SIZE", 200),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Engine.MaxExtensionDays <= 0 || c.Engine.MaxExtensionDays > 365 {
		return fmt.Errorf("ENGINE_MAX_EXTENSION_DAYS must be within 1..365")
	}

	if c.Engine.FeeCeilingMultiple <= 1.0 {
		return fmt.Errorf("ENGINE_FEE_CEILING_MULTIPLE must exceed 1.0")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
