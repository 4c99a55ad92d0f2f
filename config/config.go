// Package config loads kindauthd settings from KINDAUTH_* environment
// variables and converts them into a kindauth.Config.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	kindauth "github.com/MrEthical07/kindauth"
	"github.com/MrEthical07/kindauth/internal/logging"
)

// Backend names the storage used for accounts, challenges and the blacklist.
type Backend string

const (
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
)

// Env is the process environment. Durations use time.ParseDuration syntax.
type Env struct {
	AppName string `env:"KINDAUTH_APP_NAME" envDefault:"kindauth"`
	Version string `env:"KINDAUTH_VERSION"  envDefault:"dev"`

	Backend     Backend `env:"KINDAUTH_BACKEND"      envDefault:"redis"`
	DatabaseURL string  `env:"KINDAUTH_DATABASE_URL"`

	Redis RedisEnv `envPrefix:"KINDAUTH_REDIS_"`
	Token TokenEnv `envPrefix:"KINDAUTH_TOKEN_"`
	OTP   OTPEnv   `envPrefix:"KINDAUTH_OTP_"`

	LoginThreshold  int           `env:"KINDAUTH_LOGIN_LOCKOUT_THRESHOLD"  envDefault:"5"`
	LoginWindow     time.Duration `env:"KINDAUTH_LOGIN_LOCKOUT_WINDOW"     envDefault:"24h"`
	VerifyThreshold int           `env:"KINDAUTH_VERIFY_LOCKOUT_THRESHOLD" envDefault:"3"`
	VerifyWindow    time.Duration `env:"KINDAUTH_VERIFY_LOCKOUT_WINDOW"    envDefault:"1h"`
	ResendThreshold int           `env:"KINDAUTH_RESEND_LOCKOUT_THRESHOLD" envDefault:"5"`
	ResendWindow    time.Duration `env:"KINDAUTH_RESEND_LOCKOUT_WINDOW"    envDefault:"1h"`

	SweepInterval time.Duration `env:"KINDAUTH_SWEEP_INTERVAL" envDefault:"1h"`
	AuditEnabled  bool          `env:"KINDAUTH_AUDIT_ENABLED"  envDefault:"false"`
	MetricsAddr   string        `env:"KINDAUTH_METRICS_ADDR"`

	LogFormat string `env:"KINDAUTH_LOG_FORMAT" envDefault:"json"`
	LogLevel  string `env:"KINDAUTH_LOG_LEVEL"  envDefault:"info"`

	SMTP SMTPEnv `envPrefix:"KINDAUTH_SMTP_"`
	SMS  SMSEnv  `envPrefix:"KINDAUTH_SMS_"`
}

type RedisEnv struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"       envDefault:"0"`
	Prefix   string `env:"PREFIX"   envDefault:"ka"`
}

// TokenEnv holds signing material. Key is the hs256 secret; PrivateKey and
// PublicKey are ed25519 PEM blocks.
type TokenEnv struct {
	SigningMethod string        `env:"SIGNING_METHOD" envDefault:"hs256"`
	Key           string        `env:"KEY"`
	PrivateKey    string        `env:"PRIVATE_KEY"`
	PublicKey     string        `env:"PUBLIC_KEY"`
	KeyID         string        `env:"KEY_ID"`
	Issuer        string        `env:"ISSUER"      envDefault:"kindauth"`
	Audience      string        `env:"AUDIENCE"`
	AccessTTL     time.Duration `env:"ACCESS_TTL"  envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	Leeway        time.Duration `env:"LEEWAY"      envDefault:"30s"`
}

type OTPEnv struct {
	TTL         time.Duration `env:"TTL"          envDefault:"10m"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	Digits      int           `env:"DIGITS"       envDefault:"6"`
}

type SMTPEnv struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
}

type SMSEnv struct {
	Endpoint string `env:"ENDPOINT"`
	APIKey   string `env:"API_KEY"`
	SenderID string `env:"SENDER_ID"`
}

// Load parses the process environment.
func Load() (Env, error) {
	var cfg Env
	if err := env.Parse(&cfg); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Env{}, err
	}
	return cfg, nil
}

func (e Env) validate() error {
	switch e.Backend {
	case BackendRedis:
		if strings.TrimSpace(e.Redis.Addr) == "" {
			return errors.New("KINDAUTH_REDIS_ADDR is required for the redis backend")
		}
	case BackendPostgres:
		if strings.TrimSpace(e.DatabaseURL) == "" {
			return errors.New("KINDAUTH_DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown KINDAUTH_BACKEND %q", e.Backend)
	}
	return nil
}

// EngineConfig overlays the environment on kindauth.DefaultConfig and
// validates the result.
func (e Env) EngineConfig() (kindauth.Config, error) {
	cfg := kindauth.DefaultConfig()
	cfg.AppName = e.AppName

	cfg.LoginLockout = kindauth.LockoutConfig{Threshold: e.LoginThreshold, Window: e.LoginWindow}
	cfg.VerifyLockout = kindauth.LockoutConfig{Threshold: e.VerifyThreshold, Window: e.VerifyWindow}
	cfg.ResendLockout = kindauth.LockoutConfig{Threshold: e.ResendThreshold, Window: e.ResendWindow}

	cfg.OTP = kindauth.OTPConfig{TTL: e.OTP.TTL, MaxAttempts: e.OTP.MaxAttempts, Digits: e.OTP.Digits}

	cfg.Token.SigningMethod = strings.ToLower(strings.TrimSpace(e.Token.SigningMethod))
	cfg.Token.AccessTTL = e.Token.AccessTTL
	cfg.Token.RefreshTTL = e.Token.RefreshTTL
	cfg.Token.Leeway = e.Token.Leeway
	cfg.Token.Issuer = e.Token.Issuer
	cfg.Token.Audience = e.Token.Audience
	cfg.Token.KeyID = e.Token.KeyID
	switch cfg.Token.SigningMethod {
	case "ed25519":
		cfg.Token.PrivateKey = []byte(e.Token.PrivateKey)
		cfg.Token.PublicKey = []byte(e.Token.PublicKey)
	default:
		cfg.Token.PrivateKey = []byte(e.Token.Key)
	}

	cfg.Redis.Prefix = e.Redis.Prefix
	cfg.Sweep.Interval = e.SweepInterval
	cfg.Audit.Enabled = e.AuditEnabled
	cfg.Metrics.Enabled = e.MetricsAddr != ""

	if err := cfg.Validate(); err != nil {
		return kindauth.Config{}, fmt.Errorf("engine config: %w", err)
	}
	return cfg, nil
}

// LogOptions returns the logging setup for this environment.
func (e Env) LogOptions() logging.Options {
	return logging.Options{
		Service: e.AppName,
		Version: e.Version,
		Format:  e.LogFormat,
		Level:   e.LogLevel,
	}
}
