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
	GCS          GCSConfig
	Media        MediaConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Checkout     CheckoutConfig
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
	Env          string `envconfig:"BUNDLEUP_APP_ENV" required:"true"`
	Port         string `envconfig:"BUNDLEUP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BUNDLEUP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BUNDLEUP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BUNDLEUP_DB_DSN"`
	Driver string `envconfig:"BUNDLEUP_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BUNDLEUP_DB_HOST"`
	Port     int    `envconfig:"BUNDLEUP_DB_PORT" default:"5432"`
	User     string `envconfig:"BUNDLEUP_DB_USER"`
	Password string `envconfig:"BUNDLEUP_DB_PASSWORD"`
	Name     string `envconfig:"BUNDLEUP_DB_NAME"`
	SSLMode  string `envconfig:"BUNDLEUP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BUNDLEUP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BUNDLEUP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BUNDLEUP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BUNDLEUP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BUNDLEUP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BUNDLEUP_REDIS_ADDR"`
	Password     string        `envconfig:"BUNDLEUP_REDIS_PASSWORD"`
	DB           int           `envconfig:"BUNDLEUP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BUNDLEUP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BUNDLEUP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BUNDLEUP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BUNDLEUP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BUNDLEUP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BUNDLEUP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BUNDLEUP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BUNDLEUP_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BUNDLEUP_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BUNDLEUP_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BUNDLEUP_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"BUNDLEUP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BUNDLEUP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"BUNDLEUP_GCS_BUCKET_NAME" required:"true"`
	UploadURLExpiry   time.Duration `envconfig:"BUNDLEUP_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	DownloadURLExpiry time.Duration `envconfig:"BUNDLEUP_GCS_DOWNLOAD_URL_EXPIRY" default:"1h"`
}

type MediaConfig struct {
	MaxUploadMB int `envconfig:"BUNDLEUP_MAX_UPLOAD_MB" default:"500"`
}

type PubSubConfig struct {
	PurchaseTopic string `envconfig:"BUNDLEUP_PUBSUB_PURCHASE_TOPIC" default:"bu-purchase-events"`
}

type StripeConfig struct {
	APIKey string `envconfig:"BUNDLEUP_STRIPE_API_KEY"`
	Secret string `envconfig:"BUNDLEUP_STRIPE_SECRET"`
	Env    string `envconfig:"BUNDLEUP_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CheckoutConfig struct {
	SuccessURL string `envconfig:"BUNDLEUP_CHECKOUT_SUCCESS_URL" required:"true"`
	CancelURL  string `envconfig:"BUNDLEUP_CHECKOUT_CANCEL_URL" required:"true"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if parts[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
