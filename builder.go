package kindauth

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/kindauth/internal/audit"
	"github.com/MrEthical07/kindauth/internal/otp"
	"github.com/MrEthical07/kindauth/jwt"
	"github.com/MrEthical07/kindauth/password"
	redisstore "github.com/MrEthical07/kindauth/store/redis"
	"github.com/redis/go-redis/v9"
)

// Builder collects engine dependencies. Call Build once when done.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts  CredentialStore
	ledger    OTPLedger
	blacklist Blacklist
	hasher    Hasher
	gateway   Gateway
	logger    *slog.Logger
	auditSink AuditSink

	now  func() time.Time
	rand io.Reader

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs every store the builder was not given explicitly with the
// Redis implementations from store/redis.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStores sets the credential store, OTP ledger and blacklist. Nil
// arguments leave the corresponding store to WithRedis.
func (b *Builder) WithStores(accounts CredentialStore, ledger OTPLedger, blacklist Blacklist) *Builder {
	b.accounts = accounts
	b.ledger = ledger
	b.blacklist = blacklist
	return b
}

// WithHasher replaces the default argon2id hasher. A hasher that also
// implements UpgradableHasher enables rehash on login.
func (b *Builder) WithHasher(h Hasher) *Builder {
	b.hasher = h
	return b
}

// WithGateway sets where composed OTP messages are delivered.
func (b *Builder) WithGateway(g Gateway) *Builder {
	b.gateway = g
	return b
}

// WithLogger sets the logger used for operational warnings. The default is
// slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink enables audit dispatch to sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source for lockouts, challenges and tokens.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithRandom overrides the entropy source for OTP codes.
func (b *Builder) WithRandom(r io.Reader) *Builder {
	b.rand = r
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the authenticate latency histogram. It has no
// effect while metrics are disabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, fills in default stores and hashers and
// returns the engine. A Builder can be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- STORES --------
	accounts, ledger, blacklist := b.accounts, b.ledger, b.blacklist
	if b.redis != nil {
		if accounts == nil {
			accounts = redisstore.NewAccountStore(b.redis, redisstore.AccountOptions{
				Prefix:     cfg.Redis.Prefix,
				MaxRetries: cfg.Redis.UpdateRetries,
				Now:        now,
			})
		}
		if ledger == nil {
			ledger = redisstore.NewOTPLedger(b.redis, redisstore.LedgerOptions{
				Prefix:    cfg.Redis.Prefix,
				Retention: cfg.Redis.ChallengeRetention,
			})
		}
		if blacklist == nil {
			blacklist = redisstore.NewBlacklist(b.redis, cfg.Redis.Prefix)
		}
	}
	if accounts == nil || ledger == nil || blacklist == nil {
		return nil, errors.New("credential store, otp ledger and blacklist required (WithRedis or WithStores)")
	}
	if b.gateway == nil {
		return nil, errors.New("gateway required")
	}

	// -------- PASSWORD HASHING --------
	policy := password.Policy{MinBytes: cfg.Password.MinBytes, MaxBytes: cfg.Password.MaxBytes}
	hasher := b.hasher
	if hasher == nil {
		argon, err := password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
			Policy:      policy,
		})
		if err != nil {
			return nil, err
		}
		legacy, err := password.NewBcrypt(0, policy)
		if err != nil {
			return nil, err
		}
		hasher = password.Auto{Argon2: argon, Bcrypt: legacy}
	}
	dummy, err := hasher.Hash(dummyPassword(cfg.Password.MinBytes))
	if err != nil {
		return nil, err
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
		KeyID:         cfg.Token.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		accounts:   accounts,
		ledger:     ledger,
		blacklist:  blacklist,
		hasher:     hasher,
		policy:     policy,
		dummyHash:  dummy,
		gateway:    b.gateway,
		codes:      otp.Generator{Digits: cfg.OTP.Digits, Rand: b.rand},
		jwtManager: jm,
		logger:     logger,
		now:        now,
	}
	if up, ok := hasher.(UpgradableHasher); ok && cfg.Password.UpgradeOnLogin {
		engine.upgrader = up
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Now:        now,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.flows = engine.flowDeps()

	b.built = true

	return engine, nil
}

// dummyPassword is hashed once at build time so unknown identities can be
// verified against a real digest.
func dummyPassword(minBytes int) string {
	const seed = "kindauth-unknown-identity"
	out := seed
	for len(out) < minBytes {
		out += seed
	}
	return out[:minBytes]
}
