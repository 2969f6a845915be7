package config

const (
	EnvPrefix = "CLINICVAX"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv         = "CLINICVAX_APP_ENV"
	EnvPort           = "CLINICVAX_APP_PORT"
	EnvDBDSN          = "CLINICVAX_DB_DSN"
	EnvDBHost         = "CLINICVAX_DB_HOST"
	EnvDBUser         = "CLINICVAX_DB_USER"
	EnvDBName         = "CLINICVAX_DB_NAME"
	EnvRedisURL       = "CLINICVAX_REDIS_URL"
	EnvJWTSecret      = "CLINICVAX_JWT_SECRET"
	EnvJWTIssuer      = "CLINICVAX_JWT_ISSUER"
	EnvBudgetTimezone = "CLINICVAX_BUDGET_TIMEZONE"
	EnvBudgetsTopic   = "CLINICVAX_PUBSUB_BUDGETS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
