package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// defaultEnvFile is read when ENV_FILE is not set
const defaultEnvFile = ".env"

type Config struct {
	Server    ServerConfig    `env:",prefix=SERVER_"`
	Postgres  PostgresConfig  `env:",prefix=POSTGRES_"`
	Redis     RedisConfig     `env:",prefix=REDIS_"`
	Session   SessionConfig   `env:",prefix=SESSION_"`
	MagicLink MagicLinkConfig `env:",prefix=MAGIC_LINK_"`
	Device    DeviceConfig    `env:",prefix=DEVICE_"`
	Email     EmailConfig     `env:",prefix=EMAIL_"`
	Legacy    LegacyConfig    `env:",prefix=LEGACY_"`
	Security  SecurityConfig  `env:",prefix="`
	CORS      CORSConfig      `env:",prefix=CORS_"`
	Env       string          `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
}

type PostgresConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=tasklane"`
	Password string `env:"PASSWORD,default=tasklane_password"`
	DBName   string `env:"DB,default=tasklane_db"`
	SSLMode  string `env:"SSLMODE,default=disable"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

// SessionConfig controls the sliding-window session lifetime
type SessionConfig struct {
	TTL            Duration `env:"TTL,default=30d"`
	RenewThreshold Duration `env:"RENEW_THRESHOLD,default=15d"`
	CookieName     string   `env:"COOKIE_NAME,default=tasklane_session"`
	CookieSecure   bool     `env:"COOKIE_SECURE,default=true"`
}

type MagicLinkConfig struct {
	TTL         Duration `env:"TTL,default=15m"`
	BaseURL     string   `env:"BASE_URL,default=http://localhost:8080"`
	RedirectURL string   `env:"REDIRECT_URL,default=/"`
}

type DeviceConfig struct {
	TTL             Duration `env:"TTL,default=10m"`
	VerificationURL string   `env:"VERIFICATION_URL,default=http://localhost:3000/device"`
	PollInterval    Duration `env:"POLL_INTERVAL,default=5s"`
}

type EmailConfig struct {
	PostmarkToken string `env:"POSTMARK_TOKEN,default="`
	From          string `env:"FROM,default=no-reply@tasklane.local"`
}

// LegacyConfig holds the deprecated shared-secret bearer credential.
// Leave API_TOKEN empty to disable it.
type LegacyConfig struct {
	APIToken string `env:"API_TOKEN,default="`
	UserID   string `env:"USER_ID,default="`
}

type SecurityConfig struct {
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
	PollRateLimit     int      `env:"DEVICE_POLL_RATE_LIMIT,default=30"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Enabled reports whether the legacy shared-secret credential is configured
func (l LegacyConfig) Enabled() bool {
	return l.APIToken != ""
}

// Load loads configuration from environment variables. Values from the
// optional env file never override variables already set in the process.
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadWithDefaults loads configuration with default context
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if c.Session.TTL.Duration <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Session.RenewThreshold.Duration <= 0 || c.Session.RenewThreshold.Duration >= c.Session.TTL.Duration {
		return fmt.Errorf("SESSION_RENEW_THRESHOLD must be positive and shorter than SESSION_TTL")
	}
	if c.MagicLink.TTL.Duration <= 0 {
		return fmt.Errorf("MAGIC_LINK_TTL must be positive")
	}
	if c.Device.TTL.Duration <= 0 {
		return fmt.Errorf("DEVICE_TTL must be positive")
	}
	if c.Legacy.Enabled() {
		if len(c.Legacy.APIToken) < 32 {
			return fmt.Errorf("LEGACY_API_TOKEN must be at least 32 characters long")
		}
		if c.Legacy.UserID == "" {
			return fmt.Errorf("LEGACY_USER_ID is required when LEGACY_API_TOKEN is set")
		}
	}
	c.MagicLink.BaseURL = strings.TrimRight(c.MagicLink.BaseURL, "/")
	return nil
}

func loadEnvFile() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return nil
}
