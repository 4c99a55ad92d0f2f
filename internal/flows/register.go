package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/kindauth/model"
)

// RegisterRequest is the flow-local registration input. Email and Phone are
// already normalized.
type RegisterRequest struct {
	Kind     model.Kind
	Email    string
	Phone    string
	Password string
}

// RegisterResult is the created account and its activation deliveries.
type RegisterResult struct {
	Account    model.Account
	Deliveries []Delivery
}

// RegisterMetrics carries metric IDs needed by registration.
type RegisterMetrics struct {
	AccountCreated   int
	AccountDuplicate int
}

// RegisterEvents carries audit event names used by registration.
type RegisterEvents struct {
	AccountCreated string
}

// RegisterErrors carries host-level sentinel errors used by registration.
type RegisterErrors struct {
	EngineNotReady error
	InvalidInput   error
	AccountExists  error
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	Issue IssueDeps

	Accounts     AccountStore
	HashPassword func(string) (string, error)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, model.Account, error, func() map[string]string)

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister creates an inactive account and sends an ACTIVATION code on
// each registered channel.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (*RegisterResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if deps.Accounts == nil || deps.HashPassword == nil || !deps.Issue.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	if !req.Kind.Valid() || (req.Email == "" && req.Phone == "") {
		return nil, deps.Errors.InvalidInput
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	acct := model.Account{
		Kind:         req.Kind,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		CreatedAt:    deps.Issue.Now(),
	}
	if err := deps.Accounts.Create(ctx, &acct); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			deps.MetricInc(deps.Metrics.AccountDuplicate)
			return nil, deps.Errors.AccountExists
		}
		return nil, err
	}
	deps.MetricInc(deps.Metrics.AccountCreated)
	deps.EmitAudit(ctx, deps.Events.AccountCreated, true, acct, nil, nil)

	res := &RegisterResult{Account: acct}
	for _, ch := range acct.UnverifiedChannels() {
		d, err := IssueChallenge(ctx, acct, ch, model.PurposeActivation, deps.Issue)
		if err != nil {
			return res, err
		}
		res.Deliveries = append(res.Deliveries, d)
	}
	return res, nil
}
