package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	MercadoPago  MercadoPagoConfig
	LLM          LLMConfig
	Exchange     ExchangeConfig
	Plans        PlansConfig
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
	Env          string `envconfig:"NUTRIPLAN_APP_ENV" required:"true"`
	Port         string `envconfig:"NUTRIPLAN_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"NUTRIPLAN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NUTRIPLAN_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"NUTRIPLAN_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"NUTRIPLAN_DB_DSN"`
	Driver string `envconfig:"NUTRIPLAN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"NUTRIPLAN_DB_HOST"`
	LegacyPort     int    `envconfig:"NUTRIPLAN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"NUTRIPLAN_DB_USER"`
	LegacyPassword string `envconfig:"NUTRIPLAN_DB_PASSWORD"`
	LegacyName     string `envconfig:"NUTRIPLAN_DB_NAME"`
	LegacySSLMode  string `envconfig:"NUTRIPLAN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NUTRIPLAN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NUTRIPLAN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NUTRIPLAN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NUTRIPLAN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NUTRIPLAN_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NUTRIPLAN_REDIS_ADDR"`
	Password     string        `envconfig:"NUTRIPLAN_REDIS_PASSWORD"`
	DB           int           `envconfig:"NUTRIPLAN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NUTRIPLAN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NUTRIPLAN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NUTRIPLAN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NUTRIPLAN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NUTRIPLAN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"NUTRIPLAN_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"NUTRIPLAN_JWT_ISSUER"`
	ExpirationMinutes int    `envconfig:"NUTRIPLAN_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CronConfig carries the shared secret that external schedulers must present
// plus the cadence of the in-process cron loop.
type CronConfig struct {
	Secret   string        `envconfig:"NUTRIPLAN_CRON_SECRET" required:"true"`
	Interval time.Duration `envconfig:"NUTRIPLAN_CRON_INTERVAL" default:"1h"`
}

type FeatureFlagsConfig struct {
	// UseOnlyMercadoPago pins checkout to the Mercado Pago/ARS pair for every
	// request regardless of detected country.
	UseOnlyMercadoPago bool `envconfig:"NUTRIPLAN_USE_ONLY_MERCADOPAGO" default:"true"`
	UseSQLite          bool `envconfig:"NUTRIPLAN_USE_SQLITE" default:"false"`
	AutoMigrate        bool `envconfig:"NUTRIPLAN_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey         string `envconfig:"NUTRIPLAN_STRIPE_API_KEY"`
	Secret         string `envconfig:"NUTRIPLAN_STRIPE_SECRET"`
	Env            string `envconfig:"NUTRIPLAN_STRIPE_ENV" default:"test"`
	WeeklyPriceID  string `envconfig:"NUTRIPLAN_STRIPE_WEEKLY_PRICE_ID"`
	MonthlyPriceID string `envconfig:"NUTRIPLAN_STRIPE_MONTHLY_PRICE_ID"`
	SuccessURL     string `envconfig:"NUTRIPLAN_STRIPE_SUCCESS_URL"`
	CancelURL      string `envconfig:"NUTRIPLAN_STRIPE_CANCEL_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type MercadoPagoConfig struct {
	AccessToken   string `envconfig:"NUTRIPLAN_MP_ACCESS_TOKEN"`
	BaseURL       string `envconfig:"NUTRIPLAN_MP_BASE_URL" default:"https://api.mercadopago.com"`
	WeeklyPlanID  string `envconfig:"NUTRIPLAN_MP_WEEKLY_PLAN_ID"`
	MonthlyPlanID string `envconfig:"NUTRIPLAN_MP_MONTHLY_PLAN_ID"`
	BackURL       string `envconfig:"NUTRIPLAN_MP_BACK_URL"`
}

type LLMConfig struct {
	APIKey  string        `envconfig:"NUTRIPLAN_LLM_API_KEY"`
	BaseURL string        `envconfig:"NUTRIPLAN_LLM_BASE_URL" default:"https://api.openai.com/v1"`
	Model   string        `envconfig:"NUTRIPLAN_LLM_MODEL" default:"gpt-4o-mini"`
	Timeout time.Duration `envconfig:"NUTRIPLAN_LLM_TIMEOUT" default:"90s"`
}

type ExchangeConfig struct {
	URL          string        `envconfig:"NUTRIPLAN_EXCHANGE_URL" default:"https://dolarapi.com/v1/dolares/tarjeta"`
	TTL          time.Duration `envconfig:"NUTRIPLAN_EXCHANGE_TTL" default:"5m"`
	FallbackRate float64       `envconfig:"NUTRIPLAN_EXCHANGE_FALLBACK_RATE" default:"1400"`
}

// PlansConfig prices the weekly/monthly tiers in USD; ARS amounts are derived
// at checkout time via the exchange-rate cache.
type PlansConfig struct {
	WeeklyPriceUSD  float64 `envconfig:"NUTRIPLAN_PLAN_WEEKLY_PRICE_USD" default:"4.99"`
	MonthlyPriceUSD float64 `envconfig:"NUTRIPLAN_PLAN_MONTHLY_PRICE_USD" default:"14.99"`
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
