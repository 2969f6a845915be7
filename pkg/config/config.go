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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Budgets      BudgetsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Budgets.Location(); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", EnvBudgetTimezone, err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CLINICVAX_APP_ENV" required:"true"`
	Port         string `envconfig:"CLINICVAX_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CLINICVAX_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CLINICVAX_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"CLINICVAX_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"CLINICVAX_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN string `envconfig:"CLINICVAX_DB_DSN"`

	LegacyHost     string `envconfig:"CLINICVAX_DB_HOST"`
	LegacyPort     int    `envconfig:"CLINICVAX_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CLINICVAX_DB_USER"`
	LegacyPassword string `envconfig:"CLINICVAX_DB_PASSWORD"`
	LegacyName     string `envconfig:"CLINICVAX_DB_NAME"`
	LegacySSLMode  string `envconfig:"CLINICVAX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CLINICVAX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CLINICVAX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CLINICVAX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CLINICVAX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CLINICVAX_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CLINICVAX_REDIS_ADDR"`
	Password     string        `envconfig:"CLINICVAX_REDIS_PASSWORD"`
	DB           int           `envconfig:"CLINICVAX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CLINICVAX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CLINICVAX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CLINICVAX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CLINICVAX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CLINICVAX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the shared secret used to verify access tokens minted by
// the identity service.
type JWTConfig struct {
	Secret            string `envconfig:"CLINICVAX_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CLINICVAX_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CLINICVAX_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CLINICVAX_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CLINICVAX_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CLINICVAX_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	BudgetsTopic        string `envconfig:"CLINICVAX_PUBSUB_BUDGETS_TOPIC" default:"clinicvax-budget-events"`
	BudgetsSubscription string `envconfig:"CLINICVAX_PUBSUB_BUDGETS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CLINICVAX_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CLINICVAX_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CLINICVAX_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type BudgetsConfig struct {
	SequenceMaxAttempts int `envconfig:"CLINICVAX_BUDGET_SEQUENCE_MAX_ATTEMPTS" default:"5"`
	// Timezone decides which calendar day "today" is for as-of defaults and validity windows.
	Timezone string `envconfig:"CLINICVAX_BUDGET_TIMEZONE" default:"UTC"`
}

func (b BudgetsConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(b.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
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
