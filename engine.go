package kindauth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/kindauth/internal/audit"
	"github.com/MrEthical07/kindauth/internal/flows"
	"github.com/MrEthical07/kindauth/internal/lockout"
	"github.com/MrEthical07/kindauth/internal/otp"
	"github.com/MrEthical07/kindauth/jwt"
	"github.com/MrEthical07/kindauth/messaging"
	"github.com/MrEthical07/kindauth/model"
	"github.com/MrEthical07/kindauth/password"
)

// Engine runs every authentication flow against the configured stores. It is
// safe for concurrent use once built.
type Engine struct {
	config     Config
	accounts   CredentialStore
	ledger     OTPLedger
	blacklist  Blacklist
	hasher     Hasher
	upgrader   UpgradableHasher
	policy     password.Policy
	dummyHash  string
	gateway    Gateway
	codes      otp.Generator
	jwtManager *jwt.Manager
	audit      *audit.Dispatcher
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
	flows      flows.Deps

	sweepMu     sync.Mutex
	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// Close stops the background sweeper, if running, and drains the audit
// dispatcher. Stores are owned by the caller and are not closed.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.stopSweeper()
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were discarded because the
// dispatch buffer was full. It is 0 when auditing is off.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByEvent breaks AuditDropped down by event type.
func (e *Engine) AuditDroppedByEvent() map[string]uint64 {
	if e == nil {
		return map[string]uint64{}
	}
	return e.audit.DroppedByType()
}

// MetricsSnapshot copies the engine's counters. It returns empty maps when
// metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// IssueSession mints an access/refresh pair for acct without checking a
// password. Callers use it after flows that prove possession some other way,
// such as a completed activation.
func (e *Engine) IssueSession(ctx context.Context, acct model.Account) (*Tokens, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if acct.ID == "" || !acct.Kind.Valid() {
		return nil, ErrInvalidInput
	}
	if !acct.IsActive {
		return nil, ErrAccountInactive
	}
	t, err := e.issueTokens(ctx, acct, "")
	if err != nil {
		return nil, err
	}
	return tokensFrom(acct, t), nil
}

// LoadAccount fetches the account behind an authenticated principal. A
// record whose kind no longer matches the token is reported as not found.
func (e *Engine) LoadAccount(ctx context.Context, p *Principal) (model.Account, error) {
	if e == nil || e.accounts == nil {
		return model.Account{}, ErrEngineNotReady
	}
	if p == nil || p.AccountID == "" {
		return model.Account{}, ErrInvalidInput
	}
	acct, err := e.accounts.Get(ctx, p.AccountID)
	if err != nil {
		return model.Account{}, err
	}
	if acct.Kind != p.Kind {
		return model.Account{}, model.ErrNotFound
	}
	return acct, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Warn(msg, args...)
}

// issueTokens mints a pair inside session sid, starting a new session when
// sid is empty.
func (e *Engine) issueTokens(_ context.Context, acct model.Account, sid string) (flows.Tokens, error) {
	if sid == "" {
		sid = uuid.NewString()
	}
	access, ac, err := e.jwtManager.Issue(acct.ID, string(acct.Kind), sid, jwt.TypeAccess)
	if err != nil {
		return flows.Tokens{}, err
	}
	refresh, rc, err := e.jwtManager.Issue(acct.ID, string(acct.Kind), sid, jwt.TypeRefresh)
	if err != nil {
		return flows.Tokens{}, err
	}
	e.metricInc(MetricTokenIssued)
	return flows.Tokens{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  ac.ExpiresAt.Time,
		RefreshExpiresAt: rc.ExpiresAt.Time,
	}, nil
}

func (e *Engine) checkPassword(plain string) error {
	if err := e.policy.Check(plain); err != nil {
		return ErrInvalidInput
	}
	return nil
}

func (e *Engine) hashPassword(plain string) (string, error) {
	if err := e.checkPassword(plain); err != nil {
		return "", err
	}
	digest, err := e.hasher.Hash(plain)
	if errors.Is(err, password.ErrPolicy) {
		return "", ErrInvalidInput
	}
	return digest, err
}

func (e *Engine) dummyVerify(plain string) {
	_, _ = e.hasher.Verify(plain, e.dummyHash)
}

func (e *Engine) sendCode(ctx context.Context, acct model.Account, ch model.Channel, purpose model.Purpose, code string, ttl time.Duration) error {
	msg := messaging.Compose(e.config.AppName, ch, acct.Destination(ch), purpose, code, ttl)
	return e.gateway.Send(ctx, msg)
}

func policyFrom(cfg LockoutConfig) lockout.Policy {
	return lockout.Policy{Threshold: cfg.Threshold, Window: cfg.Window}
}

// flowDeps wires every flow once at build time. The closures capture e, so
// the returned value must not outlive the Engine.
func (e *Engine) flowDeps() flows.Deps {
	cfg := e.config
	metricInc := func(id int) {
		e.metricInc(MetricID(id))
	}
	detail := flows.DetailErrors{
		Locked:   newLockedError,
		Attempts: newAttemptsError,
	}

	issue := flows.IssueDeps{
		TTL:       cfg.OTP.TTL,
		Ledger:    e.ledger,
		Generate:  e.codes.Generate,
		HashCode:  otp.Hash,
		NewID:     model.NewChallengeID,
		Send:      e.sendCode,
		Mask:      MaskDestination,
		Now:       e.now,
		MetricInc: metricInc,
		EmitAudit: e.emitAudit,
		Warn:      e.warn,
		Metrics: flows.IssueMetrics{
			OTPIssued:       int(MetricOTPIssued),
			DeliveryFailure: int(MetricOTPDeliveryFailure),
		},
		Events: flows.IssueEvents{
			OTPIssued:       auditEventOTPIssued,
			DeliveryFailure: auditEventOTPDeliveryFailure,
		},
	}

	resend := flows.ResendDeps{
		Policy:    policyFrom(cfg.ResendLockout),
		Issue:     issue,
		Accounts:  e.accounts,
		Now:       e.now,
		MetricInc: metricInc,
		EmitAudit: e.emitAudit,
		Metrics:   flows.ResendMetrics{ResendLocked: int(MetricResendLocked)},
		Events:    flows.ResendEvents{ResendLocked: auditEventResendLocked},
		Errors: flows.ResendErrors{
			DetailErrors:   detail,
			EngineNotReady: ErrEngineNotReady,
			InvalidInput:   ErrInvalidInput,
			OTPNotFound:    ErrOTPNotFound,
			ResendLocked:   ErrResendLocked,
		},
	}

	login := flows.LoginDeps{
		Policy:         policyFrom(cfg.LoginLockout),
		Resend:         resend,
		Accounts:       e.accounts,
		Resolve:        e.Resolve,
		VerifyPassword: e.hasher.Verify,
		DummyVerify:    e.dummyVerify,
		HashPassword:   e.hashPassword,
		IssueTokens:    e.issueTokens,
		Now:            e.now,
		MetricInc:      metricInc,
		EmitAudit:      e.emitAudit,
		Warn:           e.warn,
		Metrics: flows.LoginMetrics{
			LoginSuccess:   int(MetricLoginSuccess),
			LoginFailure:   int(MetricLoginFailure),
			LoginLocked:    int(MetricLoginLocked),
			LoginInactive:  int(MetricLoginInactive),
			PasswordRehash: int(MetricPasswordRehash),
		},
		Events: flows.LoginEvents{
			LoginSuccess:  auditEventLoginSuccess,
			LoginFailure:  auditEventLoginFailure,
			LoginLocked:   auditEventLoginLocked,
			LoginInactive: auditEventLoginInactive,
		},
		Errors: flows.LoginErrors{
			DetailErrors:       detail,
			EngineNotReady:     ErrEngineNotReady,
			InvalidInput:       ErrInvalidInput,
			InvalidCredentials: ErrInvalidCredentials,
			AccountLocked:      ErrAccountLocked,
			Inactive:           newInactiveError,
		},
	}
	if e.upgrader != nil {
		login.NeedsUpgrade = e.upgrader.NeedsUpgrade
	}

	verify := flows.VerifyDeps{
		Policy:       policyFrom(cfg.VerifyLockout),
		MaxAttempts:  cfg.OTP.MaxAttempts,
		Accounts:     e.accounts,
		Ledger:       e.ledger,
		ValidateCode: e.codes.Validate,
		HashCode:     otp.Hash,
		Now:          e.now,
		MetricInc:    metricInc,
		EmitAudit:    e.emitAudit,
		Metrics: flows.VerifyMetrics{
			OTPVerified:      int(MetricOTPVerified),
			OTPInvalid:       int(MetricOTPInvalid),
			OTPExpired:       int(MetricOTPExpired),
			OTPExhausted:     int(MetricOTPExhausted),
			OTPLocked:        int(MetricOTPLocked),
			AccountActivated: int(MetricAccountActivated),
		},
		Events: flows.VerifyEvents{
			OTPVerified:      auditEventOTPVerified,
			OTPFailure:       auditEventOTPFailure,
			OTPLocked:        auditEventOTPLocked,
			AccountActivated: auditEventAccountActivated,
		},
		Errors: flows.VerifyErrors{
			DetailErrors:   detail,
			EngineNotReady: ErrEngineNotReady,
			InvalidInput:   ErrInvalidInput,
			OTPInvalid:     ErrOTPInvalid,
			OTPExpired:     ErrOTPExpired,
			OTPExhausted:   ErrOTPExhausted,
			OTPNotFound:    ErrOTPNotFound,
			OTPLocked:      ErrOTPLocked,
		},
	}

	tokenErrs := flows.TokenErrors{
		DetailErrors:    detail,
		EngineNotReady:  ErrEngineNotReady,
		TokenInvalid:    ErrTokenInvalid,
		TokenExpired:    ErrTokenExpired,
		TokenRevoked:    ErrTokenRevoked,
		AccountInactive: ErrAccountInactive,
		AccountLocked:   ErrAccountLocked,
	}

	return flows.Deps{
		Login:  login,
		Verify: verify,
		Resend: resend,
		Reset: flows.PasswordResetDeps{
			Resend:            resend,
			Verify:            verify,
			Classify:          ClassifyIdentifier,
			Resolve:           e.Resolve,
			CheckPassword:     e.checkPassword,
			HashPassword:      e.hashPassword,
			ClearLoginLockout: true,
			Now:               e.now,
			MetricInc:         metricInc,
			EmitAudit:         e.emitAudit,
			Metrics: flows.PasswordResetMetrics{
				ResetRequested: int(MetricPasswordResetRequest),
				ResetCompleted: int(MetricPasswordResetSuccess),
			},
			Events: flows.PasswordResetEvents{
				ResetRequested: auditEventPasswordResetRequest,
				ResetCompleted: auditEventPasswordResetConfirm,
			},
			Errors: flows.PasswordResetErrors{
				EngineNotReady: ErrEngineNotReady,
				InvalidInput:   ErrInvalidInput,
				OTPNotFound:    ErrOTPNotFound,
				ResendLocked:   ErrResendLocked,
			},
		},
		Register: flows.RegisterDeps{
			Issue:        issue,
			Accounts:     e.accounts,
			HashPassword: e.hashPassword,
			MetricInc:    metricInc,
			EmitAudit:    e.emitAudit,
			Metrics: flows.RegisterMetrics{
				AccountCreated:   int(MetricAccountCreated),
				AccountDuplicate: int(MetricAccountDuplicate),
			},
			Events: flows.RegisterEvents{AccountCreated: auditEventAccountCreated},
			Errors: flows.RegisterErrors{
				EngineNotReady: ErrEngineNotReady,
				InvalidInput:   ErrInvalidInput,
				AccountExists:  ErrAccountExists,
			},
		},
		Validate: flows.ValidateDeps{
			Parse:     e.jwtManager.Parse,
			Blacklist: e.blacklist,
			Errors:    tokenErrs,
		},
		Logout: flows.LogoutDeps{
			ParseIgnoringExpiry: e.jwtManager.ParseIgnoringExpiry,
			Blacklist:           e.blacklist,
			Now:                 e.now,
			Errors:              tokenErrs,
		},
		Refresh: flows.RefreshDeps{
			LoginPolicy: policyFrom(cfg.LoginLockout),
			Parse:       e.jwtManager.Parse,
			Blacklist:   e.blacklist,
			Accounts:    e.accounts,
			IssueTokens: e.issueTokens,
			Now:         e.now,
			MetricInc:   metricInc,
			EmitAudit:   e.emitAudit,
			Metrics: flows.RefreshMetrics{
				RefreshSuccess: int(MetricRefreshSuccess),
				RefreshFailure: int(MetricRefreshFailure),
				RefreshReuse:   int(MetricRefreshReuse),
			},
			Events: flows.RefreshEvents{
				RefreshSuccess: auditEventRefreshSuccess,
				RefreshFailure: auditEventRefreshFailure,
				RefreshReuse:   auditEventRefreshReuse,
			},
			Errors: tokenErrs,
		},
	}
}
