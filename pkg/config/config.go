package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Referral     ReferralConfig
	Settlement   SettlementConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Referral.validate(); err != nil {
		return nil, err
	}
	if err := cfg.CORS.validate(cfg.App); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"REFERRALZ_APP_ENV" required:"true"`
	Port         string `envconfig:"REFERRALZ_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"REFERRALZ_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"REFERRALZ_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"REFERRALZ_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"REFERRALZ_DB_DSN"`

	LegacyHost     string `envconfig:"REFERRALZ_DB_HOST"`
	LegacyPort     int    `envconfig:"REFERRALZ_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"REFERRALZ_DB_USER"`
	LegacyPassword string `envconfig:"REFERRALZ_DB_PASSWORD"`
	LegacyName     string `envconfig:"REFERRALZ_DB_NAME"`
	LegacySSLMode  string `envconfig:"REFERRALZ_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"REFERRALZ_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"REFERRALZ_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"REFERRALZ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"REFERRALZ_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"REFERRALZ_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REFERRALZ_REDIS_URL"`
	Address      string        `envconfig:"REFERRALZ_REDIS_ADDR"`
	Password     string        `envconfig:"REFERRALZ_REDIS_PASSWORD"`
	DB           int           `envconfig:"REFERRALZ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REFERRALZ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REFERRALZ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REFERRALZ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REFERRALZ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"REFERRALZ_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"REFERRALZ_AUTO_MIGRATE" default:"false"`
}

// ReferralConfig carries the tunable anti-abuse and reward constants.
type ReferralConfig struct {
	BaseReward          int64           `envconfig:"REFERRALZ_REFERRAL_BASE_REWARD" default:"20"`
	Cooldown            time.Duration   `envconfig:"REFERRALZ_REFERRAL_COOLDOWN" default:"2h"`
	DecayWindow         time.Duration   `envconfig:"REFERRALZ_REFERRAL_DECAY_WINDOW" default:"24h"`
	DecayStartCount     int             `envconfig:"REFERRALZ_REFERRAL_DECAY_START_COUNT" default:"3"`
	DecayStep           decimal.Decimal `envconfig:"REFERRALZ_REFERRAL_DECAY_STEP" default:"0.25"`
	DecayFloor          decimal.Decimal `envconfig:"REFERRALZ_REFERRAL_DECAY_FLOOR" default:"0.1"`
	ValidationPeriod    time.Duration   `envconfig:"REFERRALZ_REFERRAL_VALIDATION_PERIOD" default:"168h"`
	BaseTrustScore      int             `envconfig:"REFERRALZ_REFERRAL_BASE_TRUST_SCORE" default:"15"`
	TrustStep           int             `envconfig:"REFERRALZ_REFERRAL_TRUST_STEP" default:"5"`
	TrustBucketSize     int             `envconfig:"REFERRALZ_REFERRAL_TRUST_BUCKET_SIZE" default:"5"`
	ActivityWindow      time.Duration   `envconfig:"REFERRALZ_REFERRAL_ACTIVITY_WINDOW" default:"72h"`
	MinActivityPoints   int64           `envconfig:"REFERRALZ_REFERRAL_MIN_ACTIVITY_POINTS" default:"35"`
	DecisionLockTTL     time.Duration   `envconfig:"REFERRALZ_REFERRAL_DECISION_LOCK_TTL" default:"10s"`
	SettlementBatchSize int             `envconfig:"REFERRALZ_REFERRAL_SETTLEMENT_BATCH_SIZE" default:"500"`
}

func (r ReferralConfig) validate() error {
	if r.BaseReward < 0 {
		return fmt.Errorf("%s must not be negative", EnvReferralBaseReward)
	}
	if r.TrustBucketSize <= 0 {
		return fmt.Errorf("%s must be positive", EnvReferralTrustBucketSize)
	}
	if r.DecayFloor.IsNegative() || r.DecayStep.IsNegative() {
		return fmt.Errorf("decay step and floor must not be negative")
	}
	return nil
}

type SettlementConfig struct {
	Interval time.Duration `envconfig:"REFERRALZ_SETTLEMENT_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"REFERRALZ_SETTLEMENT_LOCK_TTL" default:"2h"`
}

type RateLimitConfig struct {
	Window      time.Duration `envconfig:"REFERRALZ_RATE_LIMIT_WINDOW" default:"1m"`
	UserLimit   int           `envconfig:"REFERRALZ_RATE_LIMIT_USER_LIMIT" default:"30"`
	ClickWindow time.Duration `envconfig:"REFERRALZ_RATE_LIMIT_CLICK_WINDOW" default:"1m"`
	ClickLimit  int           `envconfig:"REFERRALZ_RATE_LIMIT_CLICK_LIMIT" default:"60"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"REFERRALZ_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// validate refuses wildcard origins in prod.
func (c CORSConfig) validate(app AppConfig) error {
	if !app.IsProd() {
		return nil
	}
	for _, origin := range c.AllowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			return fmt.Errorf("%s must list explicit origins in %s", EnvCORSAllowedOrigins, AppEnvProd)
		}
	}
	return nil
}

type GCPConfig struct {
	ProjectID string `envconfig:"REFERRALZ_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	ReferralsTopic        string `envconfig:"REFERRALZ_PUBSUB_REFERRALS_TOPIC" default:"rf-referral-events"`
	ReferralsSubscription string `envconfig:"REFERRALZ_PUBSUB_REFERRALS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"REFERRALZ_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"REFERRALZ_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"REFERRALZ_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"REFERRALZ_OUTBOX_RETENTION_DAYS" default:"30"`
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
