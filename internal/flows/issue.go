package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/kindauth/model"
)

// IssueMetrics carries metric IDs needed by challenge issuance.
type IssueMetrics struct {
	OTPIssued       int
	DeliveryFailure int
}

// IssueEvents carries audit event names used by challenge issuance.
type IssueEvents struct {
	OTPIssued       string
	DeliveryFailure string
}

// IssueDeps captures challenge issuance dependencies. It is embedded in every
// flow that sends a code.
type IssueDeps struct {
	TTL time.Duration

	Ledger   Ledger
	Generate func() (string, error)
	HashCode func(model.ChallengeKey, string) string
	NewID    func(time.Time) string
	Send     func(ctx context.Context, acct model.Account, ch model.Channel, purpose model.Purpose, code string, ttl time.Duration) error
	Mask     func(model.Channel, string) string

	Now       func() time.Time
	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, model.Account, error, func() map[string]string)
	Warn      func(string, ...any)

	Metrics IssueMetrics
	Events  IssueEvents
}

func (d *IssueDeps) ready() bool {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MetricInc == nil {
		d.MetricInc = noMetric
	}
	if d.EmitAudit == nil {
		d.EmitAudit = noAudit
	}
	if d.Warn == nil {
		d.Warn = noWarn
	}
	if d.NewID == nil {
		d.NewID = model.NewChallengeID
	}
	if d.Mask == nil {
		d.Mask = func(_ model.Channel, s string) string { return s }
	}
	return d.Ledger != nil && d.Generate != nil && d.HashCode != nil && d.Send != nil && d.TTL > 0
}

// IssueChallenge generates a code, commits it to the ledger and then hands it
// to the gateway. Only ledger and generator failures are returned as errors.
func IssueChallenge(ctx context.Context, acct model.Account, ch model.Channel, purpose model.Purpose, deps IssueDeps) (Delivery, error) {
	code, err := deps.Generate()
	if err != nil {
		return Delivery{}, err
	}

	now := deps.Now()
	c := model.Challenge{
		ID:        deps.NewID(now),
		AccountID: acct.ID,
		Channel:   ch,
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(deps.TTL),
	}
	c.CodeHash = deps.HashCode(c.Key(), code)

	if err := deps.Ledger.Issue(ctx, c); err != nil {
		return Delivery{}, err
	}
	deps.MetricInc(deps.Metrics.OTPIssued)
	deps.EmitAudit(ctx, deps.Events.OTPIssued, true, acct, nil, func() map[string]string {
		return map[string]string{
			"channel": string(ch),
			"purpose": string(purpose),
		}
	})

	d := Delivery{
		Channel:     ch,
		Purpose:     purpose,
		Destination: deps.Mask(ch, acct.Destination(ch)),
		ExpiresAt:   c.ExpiresAt,
	}
	if err := deps.Send(ctx, acct, ch, purpose, code, deps.TTL); err != nil {
		d.Warning = err
		deps.MetricInc(deps.Metrics.DeliveryFailure)
		deps.Warn("kindauth: otp delivery failed", "account_id", acct.ID, "channel", ch, "purpose", purpose, "error", err)
		deps.EmitAudit(ctx, deps.Events.DeliveryFailure, false, acct, err, func() map[string]string {
			return map[string]string{
				"channel": string(ch),
				"purpose": string(purpose),
			}
		})
	}
	return d, nil
}
