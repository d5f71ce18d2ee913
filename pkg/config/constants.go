package config

const (
	EnvPrefix = "BUNDLEUP"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvDBDSN  = "BUNDLEUP_DB_DSN"
	EnvDBHost = "BUNDLEUP_DB_HOST"
	EnvDBUser = "BUNDLEUP_DB_USER"
	EnvDBName = "BUNDLEUP_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
