package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
		AutoMigrate        bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	} `envPrefix:"DATABASE_"`
	Auth struct {
		// HS256 secret of the hosted auth provider; tokens are only verified here
		JWTSecret  string `env:"JWT_SECRET,required,notEmpty"`
		Audience   string `env:"AUDIENCE" envDefault:"authenticated"`
		CookieName string `env:"COOKIE_NAME" envDefault:"sb-access-token"`
	} `envPrefix:"AUTH_"`
	Email struct {
		From string `env:"FROM"`
		SMTP struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
		TemplateDir string `env:"TEMPLATE_DIR"` // empty uses the built-in templates
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN"`
		Queue          string `env:"QUEUE" envDefault:"notification_queue"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
		RetryDelay     int    `env:"RETRY_DELAY" envDefault:"30"` // seconds
		MaxDeliveries  int64  `env:"MAX_DELIVERIES" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host           string `env:"HOST" envDefault:"localhost"`
		Port           int    `env:"PORT" envDefault:"6379"`
		Password       string `env:"PASSWORD"`
		DB             int    `env:"DB" envDefault:"0"`
		ConnectTimeout int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
	} `envPrefix:"REDIS_"`
	Scheduler struct {
		MaxJobEvents    int    `env:"MAX_JOB_EVENTS" envDefault:"6"`
		Timezone        string `env:"TIMEZONE" envDefault:"UTC"`
		Store           string `env:"STORE" envDefault:"postgres"` // postgres | memory
		LockBackend     string `env:"LOCK_BACKEND" envDefault:"memory"`
		LockTTL         int    `env:"LOCK_TTL_MS" envDefault:"5000"`
		RetryAttempts   int    `env:"RETRY_ATTEMPTS" envDefault:"3"`
		RetryInitial    int    `env:"RETRY_INITIAL_MS" envDefault:"20"`
		RetryMax        int    `env:"RETRY_MAX_MS" envDefault:"250"`
		DuplicatePolicy string `env:"DUPLICATE_POLICY" envDefault:"reject"` // reject | ignore
	} `envPrefix:"SCHEDULER_"`
	Quota struct {
		DailyMutations int    `env:"DAILY_MUTATIONS" envDefault:"0"` // 0 disables the quota
		Backend        string `env:"BACKEND" envDefault:"memory"`
	} `envPrefix:"QUOTA_"`
	Log struct {
		Level  string `env:"LEVEL" envDefault:"info"`
		Format string `env:"FORMAT" envDefault:"json"`
	} `envPrefix:"LOG_"`
	Metrics struct {
		Enabled bool   `env:"ENABLED" envDefault:"true"`
		Path    string `env:"PATH" envDefault:"/metrics"`
	} `envPrefix:"METRICS_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// only the first error keeps the log readable
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the cross-field rules env tags cannot express.
func (c *Config) Validate() error {
	if c.Scheduler.Store == "postgres" && c.Database.DSN == "" {
		return errors.New("DATABASE_DSN is required when SCHEDULER_STORE=postgres")
	}
	switch c.Scheduler.Store {
	case "postgres", "memory":
	default:
		return errors.New("SCHEDULER_STORE must be postgres or memory")
	}
	switch c.Scheduler.LockBackend {
	case "memory", "redis":
	default:
		return errors.New("SCHEDULER_LOCK_BACKEND must be memory or redis")
	}
	switch c.Scheduler.DuplicatePolicy {
	case "reject", "ignore":
	default:
		return errors.New("SCHEDULER_DUPLICATE_POLICY must be reject or ignore")
	}
	if c.Scheduler.MaxJobEvents <= 0 {
		return errors.New("SCHEDULER_MAX_JOB_EVENTS must be positive")
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return err
	}
	return nil
}

// Location returns the timezone calendar dates are computed in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) UsesRedis() bool {
	return c.Scheduler.LockBackend == "redis" || c.Quota.Backend == "redis"
}
