package kindauth

import (
	"errors"
	"fmt"
	"time"
)

// Config holds every engine setting. Start from DefaultConfig.
type Config struct {
	AppName       string
	LoginLockout  LockoutConfig
	VerifyLockout LockoutConfig
	ResendLockout LockoutConfig
	OTP           OTPConfig
	Token         TokenConfig
	Password      PasswordConfig
	Redis         RedisConfig
	Sweep         SweepConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig parameterizes one lockout instance. Threshold failures inside
// the counting period lock the counter for Window. A zero Threshold disables
// the instance.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig sets code length, lifetime and the attempts allowed per code.
type OTPConfig struct {
	TTL         time.Duration
	MaxAttempts int
	Digits      int
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures JWT signing and lifetimes.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig sets the argon2id cost and the password length policy.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinBytes       int
	MaxBytes       int
	UpgradeOnLogin bool
}

/*
====================================
STORE / SWEEP CONFIG
====================================
*/

// RedisConfig tunes the Redis stores built by WithRedis.
type RedisConfig struct {
	Prefix             string
	ChallengeRetention time.Duration
	UpdateRetries      int
}

// SweepConfig controls the background blacklist sweeper.
type SweepConfig struct {
	Interval time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig sizes the asynchronous audit buffer.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig switches the in-process counters and histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults. Token key material is left
// empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		AppName: "kindauth",
		LoginLockout: LockoutConfig{
			Threshold: 5,
			Window:    24 * time.Hour,
		},
		VerifyLockout: LockoutConfig{
			Threshold: 3,
			Window:    time.Hour,
		},
		ResendLockout: LockoutConfig{
			Threshold: 5,
			Window:    time.Hour,
		},
		OTP: OTPConfig{
			TTL:         10 * time.Minute,
			MaxAttempts: 3,
			Digits:      6,
		},
		Token: TokenConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Leeway:        30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinBytes:       10,
			MaxBytes:       72,
			UpgradeOnLogin: true,
		},
		Redis: RedisConfig{
			Prefix:             "ka",
			ChallengeRetention: 24 * time.Hour,
			UpdateRetries:      8,
		},
		Sweep: SweepConfig{
			Interval: time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	for _, l := range []struct {
		name string
		cfg  LockoutConfig
	}{
		{"LoginLockout", c.LoginLockout},
		{"VerifyLockout", c.VerifyLockout},
		{"ResendLockout", c.ResendLockout},
	} {
		if l.cfg.Threshold < 0 {
			return fmt.Errorf("%s Threshold must be >= 0", l.name)
		}
		if l.cfg.Threshold > 0 && l.cfg.Window <= 0 {
			return fmt.Errorf("%s Window must be > 0 when Threshold is set", l.name)
		}
	}

	// OTP
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}
	if c.OTP.MaxAttempts <= 0 {
		return errors.New("OTP MaxAttempts must be > 0")
	}
	if c.OTP.Digits < 4 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be between 4 and 10")
	}

	// Token
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}
	switch c.Token.SigningMethod {
	case "hs256":
		if len(c.Token.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.Token.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported Token signing method")
	}

	// Password
	if c.Password.MinBytes <= 0 || c.Password.MaxBytes < c.Password.MinBytes {
		return errors.New("Password MinBytes/MaxBytes out of range")
	}

	// Sweep
	if c.Sweep.Interval <= 0 {
		return errors.New("Sweep Interval must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
