package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/kindauth/model"
	"github.com/redis/go-redis/v9"
)

const defaultChallengeRetention = 24 * time.Hour

// verifyChallengeLua compares and counts in one step.
// KEYS[1] = challenge key
// ARGV[1] = submitted code hash
// ARGV[2] = now (unix ms)
// ARGV[3] = max attempts
//
// Returns {status, n}: status is one of not_found, used, expired, exhausted,
// verified, invalid; n is the attempts left for invalid.
var verifyChallengeLua = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'code_hash', 'expires_at', 'attempts', 'verified')
if not v[1] then
  return {'not_found', 0}
end
if v[4] == '1' then
  return {'used', 0}
end

local now = tonumber(ARGV[2])
local maxAttempts = tonumber(ARGV[3])
if now >= tonumber(v[2]) then
  return {'expired', 0}
end

local attempts = tonumber(v[3])
if attempts >= maxAttempts then
  return {'exhausted', 0}
end

if v[1] == ARGV[1] then
  redis.call('HSET', KEYS[1], 'verified', '1')
  return {'verified', 0}
end

attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
if attempts >= maxAttempts then
  return {'exhausted', 0}
end
return {'invalid', maxAttempts - attempts}
`)

// LedgerOptions tunes the OTP ledger.
type LedgerOptions struct {
	Prefix string
	// Retention keeps a terminal challenge readable after ExpiresAt so that
	// late submissions report expired rather than not found.
	Retention time.Duration
}

// OTPLedger stores exactly one challenge per (account, channel, purpose).
// Issuing replaces the slot, which is how a newer code supersedes an older one.
type OTPLedger struct {
	redis     redis.UniversalClient
	keys      keyspace
	retention time.Duration
}

func NewOTPLedger(client redis.UniversalClient, opts LedgerOptions) *OTPLedger {
	if opts.Retention <= 0 {
		opts.Retention = defaultChallengeRetention
	}
	return &OTPLedger{
		redis:     client,
		keys:      newKeyspace(opts.Prefix),
		retention: opts.Retention,
	}
}

func (l *OTPLedger) Issue(ctx context.Context, c model.Challenge) error {
	if !c.Key().Valid() || c.CodeHash == "" || c.ExpiresAt.IsZero() {
		return errors.New("redisstore: incomplete challenge")
	}
	key := l.keys.challenge(c.Key())
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]any{
			"id":         c.ID,
			"code_hash":  c.CodeHash,
			"created_at": formatMillis(c.CreatedAt),
			"expires_at": formatMillis(c.ExpiresAt),
			"attempts":   strconv.Itoa(c.Attempts),
			"verified":   formatBool(c.Verified),
		})
		pipe.PExpireAt(ctx, key, c.ExpiresAt.Add(l.retention))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return nil
}

func (l *OTPLedger) Verify(ctx context.Context, key model.ChallengeKey, codeHash string, now time.Time, maxAttempts int) (model.VerifyResult, error) {
	res, err := verifyChallengeLua.Run(ctx, l.redis,
		[]string{l.keys.challenge(key)},
		codeHash,
		now.UnixMilli(),
		maxAttempts,
	).Slice()
	if err != nil {
		return model.VerifyResult{}, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return model.VerifyResult{}, fmt.Errorf("%w: unexpected lua result", model.ErrStoreUnavailable)
	}
	status, _ := res[0].(string)
	n, _ := res[1].(int64)

	switch status {
	case "verified":
		return model.VerifyResult{Outcome: model.OutcomeVerified}, nil
	case "invalid":
		return model.VerifyResult{Outcome: model.OutcomeInvalid, Remaining: int(n)}, nil
	case "expired":
		return model.VerifyResult{Outcome: model.OutcomeExpired}, nil
	case "exhausted":
		return model.VerifyResult{Outcome: model.OutcomeExhausted}, nil
	case "used":
		return model.VerifyResult{Outcome: model.OutcomeUsed}, nil
	case "not_found":
		return model.VerifyResult{Outcome: model.OutcomeNotFound}, nil
	default:
		return model.VerifyResult{}, fmt.Errorf("%w: unexpected lua status %q", model.ErrStoreUnavailable, status)
	}
}

// Latest returns the live slot for key.
func (l *OTPLedger) Latest(ctx context.Context, key model.ChallengeKey) (model.Challenge, error) {
	v, err := l.redis.HGetAll(ctx, l.keys.challenge(key)).Result()
	if err != nil {
		return model.Challenge{}, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	if len(v) == 0 {
		return model.Challenge{}, model.ErrNotFound
	}
	attempts, _ := strconv.Atoi(v["attempts"])
	return model.Challenge{
		ID:        v["id"],
		AccountID: key.AccountID,
		Channel:   key.Channel,
		Purpose:   key.Purpose,
		CodeHash:  v["code_hash"],
		CreatedAt: parseMillis(v["created_at"]),
		ExpiresAt: parseMillis(v["expires_at"]),
		Attempts:  attempts,
		Verified:  v["verified"] == "1",
	}, nil
}

// Purge is a no-op: challenge keys carry their own expiry.
func (l *OTPLedger) Purge(context.Context, time.Time) (int64, error) {
	return 0, nil
}
