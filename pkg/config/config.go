package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "samaki"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SAMAKI_DB_DSN"
	EnvDBHost = "SAMAKI_DB_HOST"
	EnvDBUser = "SAMAKI_DB_USER"
	EnvDBName = "SAMAKI_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Mpesa        MpesaConfig
	Checkout     CheckoutConfig
	Cron         CronConfig
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
	Env          string `envconfig:"SAMAKI_APP_ENV" required:"true"`
	Port         string `envconfig:"SAMAKI_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SAMAKI_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SAMAKI_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"SAMAKI_DB_DSN"`

	LegacyHost     string `envconfig:"SAMAKI_DB_HOST"`
	LegacyPort     int    `envconfig:"SAMAKI_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SAMAKI_DB_USER"`
	LegacyPassword string `envconfig:"SAMAKI_DB_PASSWORD"`
	LegacyName     string `envconfig:"SAMAKI_DB_NAME"`
	LegacySSLMode  string `envconfig:"SAMAKI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SAMAKI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SAMAKI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SAMAKI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SAMAKI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SAMAKI_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SAMAKI_REDIS_ADDR"`
	Password     string        `envconfig:"SAMAKI_REDIS_PASSWORD"`
	DB           int           `envconfig:"SAMAKI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SAMAKI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SAMAKI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SAMAKI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SAMAKI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SAMAKI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// MpesaConfig carries the Daraja credentials and callback policy.
type MpesaConfig struct {
	BaseURL           string        `envconfig:"SAMAKI_MPESA_BASE_URL" default:"https://sandbox.safaricom.co.ke"`
	ConsumerKey       string        `envconfig:"SAMAKI_MPESA_CONSUMER_KEY"`
	ConsumerSecret    string        `envconfig:"SAMAKI_MPESA_CONSUMER_SECRET"`
	BusinessShortCode string        `envconfig:"SAMAKI_MPESA_SHORT_CODE"`
	Passkey           string        `envconfig:"SAMAKI_MPESA_PASSKEY"`
	CallbackURL       string        `envconfig:"SAMAKI_MPESA_CALLBACK_URL"`
	RequestTimeout    time.Duration `envconfig:"SAMAKI_MPESA_REQUEST_TIMEOUT" default:"10s"`
	MaxAttempts       int           `envconfig:"SAMAKI_MPESA_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay    time.Duration `envconfig:"SAMAKI_MPESA_RETRY_BASE_DELAY" default:"500ms"`

	// Callback verification. Both empty means accept (sandbox), logged at warn.
	CallbackSecret    string `envconfig:"SAMAKI_MPESA_CALLBACK_SECRET"`
	AllowedSourceCIDR string `envconfig:"SAMAKI_MPESA_ALLOWED_SOURCE_CIDR"`
	AckUnknown        bool   `envconfig:"SAMAKI_MPESA_ACK_UNKNOWN" default:"false"`
}

type CheckoutConfig struct {
	ReservationTTL time.Duration `envconfig:"SAMAKI_CHECKOUT_RESERVATION_TTL" default:"10m"`
	PaymentWindow  time.Duration `envconfig:"SAMAKI_CHECKOUT_PAYMENT_WINDOW" default:"10m"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SAMAKI_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"SAMAKI_CRON_LOCK_TTL" default:"5m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SAMAKI_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
