// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvDev  = "dev"
	EnvTest = "test"
	EnvProd = "prod"
)

// Config holds all runtime configuration values.  Each nested struct groups
// the variables of one concern so that constructors can receive only what
// they need (for example database.Open takes a DBConfig).
type Config struct {
	App       AppConfig
	DB        DBConfig
	JWT       JWTConfig
	Password  PasswordConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	AMQP      AMQPConfig
}

// AppConfig describes the process itself.
type AppConfig struct {
	Env       string `envconfig:"APP_ENV" required:"true"`  // environment (dev/test/prod)
	Port      string `envconfig:"APP_PORT" required:"true"` // port to bind the HTTP server
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"` // json | console
}

// IsDev reports whether the service runs in the development environment.
func (a AppConfig) IsDev() bool { return strings.EqualFold(a.Env, EnvDev) }

// DBConfig carries the MySQL connection settings and pool sizes.
type DBConfig struct {
	User            string        `envconfig:"DB_USER" required:"true"`
	Pass            string        `envconfig:"DB_PASS"` // empty allowed
	Host            string        `envconfig:"DB_HOST" required:"true"`
	Port            string        `envconfig:"DB_PORT" required:"true"`
	Name            string        `envconfig:"DB_NAME" required:"true"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"25"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// JWTConfig configures access token signing.  There are no refresh tokens:
// clients log in again once the access token expires.
type JWTConfig struct {
	Secret       string `envconfig:"JWT_SECRET" required:"true"`
	AccessTTLMin int    `envconfig:"ACCESS_TOKEN_TTL_MIN" default:"60"`
}

// AccessTTL returns the configured token lifetime.
func (j JWTConfig) AccessTTL() time.Duration {
	if j.AccessTTLMin <= 0 {
		return time.Hour
	}
	return time.Duration(j.AccessTTLMin) * time.Minute
}

// PasswordConfig holds the bcrypt cost factor.
type PasswordConfig struct {
	BcryptCost int `envconfig:"BCRYPT_COST" default:"10"`
}

// AMQPConfig points at the RabbitMQ broker used for rating events.  An empty
// URL disables publishing.
type AMQPConfig struct {
	URL   string `envconfig:"RABBITMQ_URL"`
	Queue string `envconfig:"RATING_QUEUE" default:"rating.submitted"`
	// AuditLog is the file cmd/rating-consumer appends one line per event to.
	AuditLog string `envconfig:"RATING_AUDIT_LOG" default:"logs/ratings.log"`
}

// Load reads an optional .env file and then the process environment into a
// Config.  Missing required variables are reported as an error so main can
// log and exit.
func Load() (Config, error) {
	_ = godotenv.Load() // .env is optional; real environment wins

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.RateLimit = cfg.RateLimit.Normalize()
	cfg.Cache = cfg.Cache.Normalize()
	return cfg, nil
}

// validate rejects required variables that are set but empty; envconfig's
// required tag only checks presence.
func (c Config) validate() error {
	for _, f := range []struct{ name, value string }{
		{"APP_PORT", c.App.Port},
		{"DB_USER", c.DB.User},
		{"DB_HOST", c.DB.Host},
		{"DB_PORT", c.DB.Port},
		{"DB_NAME", c.DB.Name},
		{"JWT_SECRET", c.JWT.Secret},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("required key %s must not be empty", f.name)
		}
	}
	return nil
}
