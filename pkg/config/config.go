package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Port               string `mapstructure:"PORT"`
	DatabaseURL        string `mapstructure:"DATABASE_URL"`
	AppEnv             string `mapstructure:"APP_ENV"`
	BaseURL            string `mapstructure:"BASE_URL"`
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"GOOGLE_REDIRECT_URL"`
	JWTSecret          string `mapstructure:"JWT_SECRET"`
	FrontendURL        string `mapstructure:"FRONTEND_URL"`
	AllowedEmailsRaw   string `mapstructure:"ALLOWED_EMAILS"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	MaxCodeAttempts  int           `mapstructure:"MAX_CODE_ATTEMPTS"`
	DefaultTTL       time.Duration `mapstructure:"DEFAULT_TTL"`
	StoreTimeout     time.Duration `mapstructure:"STORE_TIMEOUT"`
	EnforceOwnership bool          `mapstructure:"ENFORCE_OWNERSHIP"`
	SweepInterval    time.Duration `mapstructure:"SWEEP_INTERVAL"`

	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	// AllowedEmails restricts Google sign-in. Empty allows every account.
	AllowedEmails []string `mapstructure:"-"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}
	cfg.AllowedEmails = splitList(cfg.AllowedEmailsRaw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "file:shortlink.db")
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback")
	v.SetDefault("JWT_SECRET", "secret")
	v.SetDefault("FRONTEND_URL", "http://localhost:8080/dashboard")
	v.SetDefault("ALLOWED_EMAILS", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("MAX_CODE_ATTEMPTS", 10)
	v.SetDefault("DEFAULT_TTL", "720h")
	v.SetDefault("STORE_TIMEOUT", "3s")
	v.SetDefault("ENFORCE_OWNERSHIP", true)
	v.SetDefault("SWEEP_INTERVAL", "0s")

	v.SetDefault("RATE_LIMIT_RPS", 20.0)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.MaxCodeAttempts < 1 {
		return errors.Errorf("MAX_CODE_ATTEMPTS must be positive, got %d", c.MaxCodeAttempts)
	}
	if c.DefaultTTL <= 0 {
		return errors.Errorf("DEFAULT_TTL must be positive, got %s", c.DefaultTTL)
	}
	if c.StoreTimeout < 0 {
		return errors.Errorf("STORE_TIMEOUT must not be negative, got %s", c.StoreTimeout)
	}
	if c.SweepInterval < 0 {
		return errors.Errorf("SWEEP_INTERVAL must not be negative, got %s", c.SweepInterval)
	}
	if c.AppEnv == "production" && c.JWTSecret == "secret" {
		return errors.New("JWT_SECRET must be set in production")
	}
	return nil
}

// IsProduction reports whether cookies should be marked Secure.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
