package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the API needs at startup. Values come from config.env
// in the working directory and can be overridden by environment variables.
type Config struct {
	Port      string `mapstructure:"PORT"`
	Env       string `mapstructure:"ENV"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	DSN       string `mapstructure:"DSN"`
	JWTSecret string `mapstructure:"JWT_SECRET"`

	MidtransServerKey string        `mapstructure:"MIDTRANS_SERVER_KEY"`
	MidtransEnv       string        `mapstructure:"MIDTRANS_ENV"`
	GatewayTimeout    time.Duration `mapstructure:"GATEWAY_TIMEOUT"`
	AppBaseURL        string        `mapstructure:"APP_BASE_URL"`

	RedisURL   string        `mapstructure:"REDIS_URL"`
	PendingTTL time.Duration `mapstructure:"PENDING_TTL"`

	SuperfanThresholdCents int64         `mapstructure:"SUPERFAN_THRESHOLD_CENTS"`
	ViewMinDwell           time.Duration `mapstructure:"VIEW_MIN_DWELL"`

	CORSOrigins string `mapstructure:"CORS_ORIGINS"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DSN", "JWT_SECRET",
	"MIDTRANS_SERVER_KEY", "MIDTRANS_ENV", "GATEWAY_TIMEOUT", "APP_BASE_URL",
	"REDIS_URL", "PENDING_TTL", "SUPERFAN_THRESHOLD_CENTS", "VIEW_MIN_DWELL", "CORS_ORIGINS",
}

// Load reads config.env from path (if present) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MIDTRANS_ENV", "sandbox")
	v.SetDefault("GATEWAY_TIMEOUT", 15*time.Second)
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")
	v.SetDefault("PENDING_TTL", 24*time.Hour)
	v.SetDefault("SUPERFAN_THRESHOLD_CENTS", 5000)
	v.SetDefault("VIEW_MIN_DWELL", 5*time.Second)
	v.SetDefault("CORS_ORIGINS", "*")

	// AutomaticEnv only applies to keys viper already knows about.
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, errors.New("DSN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return &cfg, nil
}

// MonetizationEnabled reports whether a payment processor key was configured.
func (c *Config) MonetizationEnabled() bool {
	return strings.TrimSpace(c.MidtransServerKey) != ""
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
