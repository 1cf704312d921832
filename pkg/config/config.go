package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "SMMHUB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Admin        AdminConfig
	Bonus        BonusConfig
	RateLimit    RateLimitConfig
	Lifecycle    LifecycleConfig
	Telegram     TelegramConfig
	Fulfillment  FulfillmentConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SMMHUB_APP_ENV" default:"dev"`
	Port         string `envconfig:"SMMHUB_APP_PORT" default:"3001"`
	LogLevel     string `envconfig:"SMMHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SMMHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SMMHUB_DB_DSN"`
	Driver string `envconfig:"SMMHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SMMHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"SMMHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SMMHUB_DB_USER"`
	LegacyPassword string `envconfig:"SMMHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"SMMHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"SMMHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SMMHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SMMHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SMMHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SMMHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SMMHUB_REDIS_URL"`
	Address      string        `envconfig:"SMMHUB_REDIS_ADDR"`
	Password     string        `envconfig:"SMMHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"SMMHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SMMHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SMMHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SMMHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SMMHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SMMHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint is configured at all. The API
// degrades to non-idempotent handling without one.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type AdminConfig struct {
	ChatIDs []int64 `envconfig:"SMMHUB_ADMIN_CHAT_IDS"`
}

// IsAdmin reports whether the given Telegram id is on the operator list.
func (a AdminConfig) IsAdmin(telegramID int64) bool {
	for _, id := range a.ChatIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// BonusConfig carries the fixed credit amounts, in so'm.
type BonusConfig struct {
	Signup     int64 `envconfig:"SMMHUB_SIGNUP_BONUS" default:"10000"`
	Referral   int64 `envconfig:"SMMHUB_REFERRAL_BONUS" default:"5000"`
	MinDeposit int64 `envconfig:"SMMHUB_MIN_DEPOSIT" default:"5000"`
}

// LifecycleConfig drives the synthetic order progression and the simulated
// deposit confirmation.
type LifecycleConfig struct {
	ProcessingDelay   time.Duration `envconfig:"SMMHUB_ORDER_PROCESSING_DELAY" default:"5s"`
	ProgressDelay     time.Duration `envconfig:"SMMHUB_ORDER_PROGRESS_DELAY" default:"15s"`
	CompletionDelay   time.Duration `envconfig:"SMMHUB_ORDER_COMPLETION_DELAY" default:"30s"`
	CompletionJitter  time.Duration `envconfig:"SMMHUB_ORDER_COMPLETION_JITTER" default:"30s"`
	DepositConfirmGap time.Duration `envconfig:"SMMHUB_DEPOSIT_CONFIRM_DELAY" default:"3s"`
}

// RateLimitConfig throttles the public API per client IP. A zero limit
// disables throttling.
type RateLimitConfig struct {
	Requests int64         `envconfig:"SMMHUB_RATE_LIMIT_REQUESTS" default:"60"`
	Window   time.Duration `envconfig:"SMMHUB_RATE_LIMIT_WINDOW" default:"1m"`
}

// Enabled reports whether throttling should be applied at all.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0 && r.Window > 0
}

type TelegramConfig struct {
	BotToken string `envconfig:"SMMHUB_BOT_TOKEN"`
}

type FulfillmentConfig struct {
	APIURL  string        `envconfig:"SMMHUB_SMM_API_URL" default:"https://smmworld.su/api/v2"`
	APIKey  string        `envconfig:"SMMHUB_SMM_API_KEY"`
	Timeout time.Duration `envconfig:"SMMHUB_SMM_API_TIMEOUT" default:"10s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool   `envconfig:"SMMHUB_USE_SQLITE" default:"false"`
	SQLitePath  string `envconfig:"SMMHUB_SQLITE_PATH" default:"smmhub.db"`
	AutoMigrate bool   `envconfig:"SMMHUB_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.LegacyHost == "" || db.LegacyUser == "" || db.LegacyName == "" {
		// SQLite deployments run without a DSN entirely.
		return nil
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
