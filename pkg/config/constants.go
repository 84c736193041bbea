package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "NUTRIPLAN"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "NUTRIPLAN_APP_ENV"
	EnvPort   = "NUTRIPLAN_APP_PORT"
	EnvDBDSN  = "NUTRIPLAN_DB_DSN"
	EnvDBHost = "NUTRIPLAN_DB_HOST"
	EnvDBUser = "NUTRIPLAN_DB_USER"
	EnvDBName = "NUTRIPLAN_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
