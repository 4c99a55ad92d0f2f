package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/kindauth/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

const (
	defaultMaxRetries   = 8
	defaultRetryBackoff = 2 * time.Millisecond
)

// lockStepLua applies one lockout outcome to an account hash.
// KEYS[1] = account key
// ARGV[1] = counter field prefix (login, verify, resend)
// ARGV[2] = 1 for a failure, 0 for a success
// ARGV[3] = now (unix ms)
// ARGV[4] = threshold
// ARGV[5] = window (ms)
//
// Returns {status, count, lock_until}: status is -1 for a missing account,
// 0 when the step was written, 1 when an unexpired lock refused it and 2 when
// the failure set the lock.
var lockStepLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {-1, 0, 0}
end
local countField = ARGV[1] .. '_count'
local lockField = ARGV[1] .. '_lock_until'
local v = redis.call('HMGET', KEYS[1], countField, lockField)
local count = tonumber(v[1]) or 0
local lock = tonumber(v[2]) or 0
local now = tonumber(ARGV[3])

if lock ~= 0 and now >= lock then
  count = 0
  lock = 0
end
if lock ~= 0 then
  return {1, count, lock}
end

local status = 0
if ARGV[2] == '1' then
  count = count + 1
  local threshold = tonumber(ARGV[4])
  local window = tonumber(ARGV[5])
  if threshold > 0 and window > 0 and count >= threshold then
    count = 0
    lock = now + window
    status = 2
  end
else
  count = 0
end
redis.call('HSET', KEYS[1], countField, string.format('%d', count), lockField, string.format('%d', lock))
return {status, count, lock}
`)

// AccountOptions tunes the account store.
type AccountOptions struct {
	Prefix string
	// MaxRetries bounds WATCH conflicts per Update before ErrConflict.
	MaxRetries   int
	RetryBackoff time.Duration
	Now          func() time.Time
}

// AccountStore keeps one hash per account plus one index key per
// (kind, channel, value).
type AccountStore struct {
	redis   redis.UniversalClient
	keys    keyspace
	retries uint64
	backoff time.Duration
	now     func() time.Time
}

func NewAccountStore(client redis.UniversalClient, opts AccountOptions) *AccountStore {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AccountStore{
		redis:   client,
		keys:    newKeyspace(opts.Prefix),
		retries: uint64(opts.MaxRetries),
		backoff: opts.RetryBackoff,
		now:     opts.Now,
	}
}

// Create inserts a new account. The ID is generated when empty.
func (s *AccountStore) Create(ctx context.Context, acct *model.Account) error {
	if acct == nil || !acct.Kind.Valid() || (acct.Email == "" && acct.Phone == "") {
		return errors.New("redisstore: account requires a kind and an email or phone")
	}
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = s.now().UTC()
	}

	key := s.keys.account(acct.ID)
	watched := []string{key}
	var indexes []string
	if acct.Email != "" {
		indexes = append(indexes, s.keys.index(acct.Kind, model.ChannelEmail, acct.Email))
	}
	if acct.Phone != "" {
		indexes = append(indexes, s.keys.index(acct.Kind, model.ChannelPhone, acct.Phone))
	}
	watched = append(watched, indexes...)

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, watched...).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return model.ErrDuplicate
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeAccount(*acct))
			for _, idx := range indexes {
				pipe.Set(ctx, idx, acct.ID, 0)
			}
			return nil
		})
		return err
	}, watched...)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrDuplicate):
		return err
	case errors.Is(err, redis.TxFailedErr):
		// another writer touched one of the index keys first
		return model.ErrDuplicate
	default:
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
}

func (s *AccountStore) Get(ctx context.Context, id string) (model.Account, error) {
	vals, err := s.redis.HGetAll(ctx, s.keys.account(id)).Result()
	if err != nil {
		return model.Account{}, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	if len(vals) == 0 {
		return model.Account{}, model.ErrNotFound
	}
	return decodeAccount(vals)
}

func (s *AccountStore) FindByEmail(ctx context.Context, kind model.Kind, email string) (model.Account, error) {
	return s.findBy(ctx, s.keys.index(kind, model.ChannelEmail, email))
}

func (s *AccountStore) FindByPhone(ctx context.Context, kind model.Kind, phone string) (model.Account, error) {
	return s.findBy(ctx, s.keys.index(kind, model.ChannelPhone, phone))
}

func (s *AccountStore) findBy(ctx context.Context, indexKey string) (model.Account, error) {
	id, err := s.redis.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return model.Account{}, model.ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return s.Get(ctx, id)
}

// Update applies fn to the current record and writes it back atomically.
// fn may run more than once when a concurrent writer wins the WATCH race.
// Identity fields (ID, Kind, Email, Phone, CreatedAt) are not writable here.
func (s *AccountStore) Update(ctx context.Context, id string, fn func(*model.Account) error) (model.Account, error) {
	key := s.keys.account(id)
	var (
		out     model.Account
		userErr error
	)

	backoff := retry.WithMaxRetries(s.retries, retry.NewConstant(s.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		userErr = nil
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			vals, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			if len(vals) == 0 {
				userErr = model.ErrNotFound
				return userErr
			}
			current, err := decodeAccount(vals)
			if err != nil {
				return err
			}

			next := current
			if err := fn(&next); err != nil {
				userErr = err
				return err
			}
			next.ID, next.Kind, next.Email, next.Phone, next.CreatedAt =
				current.ID, current.Kind, current.Email, current.Phone, current.CreatedAt

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, encodeAccount(next))
				return nil
			})
			if err == nil {
				out = next
			}
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			return retry.RetryableError(err)
		}
		return err
	})

	switch {
	case err == nil:
		return out, nil
	case userErr != nil:
		return model.Account{}, userErr
	case errors.Is(err, redis.TxFailedErr):
		return model.Account{}, model.ErrConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return model.Account{}, err
	default:
		return model.Account{}, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
}

// StepLock applies one lockout outcome to a counter in a single script call,
// so concurrent failures are all counted.
func (s *AccountStore) StepLock(ctx context.Context, id string, step model.LockStep) (model.LockTransition, error) {
	if !step.Counter.Valid() {
		return model.LockTransition{}, fmt.Errorf("redisstore: unknown lock counter %q", step.Counter)
	}
	failure := "0"
	if step.Failure {
		failure = "1"
	}
	res, err := lockStepLua.Run(ctx, s.redis,
		[]string{s.keys.account(id)},
		string(step.Counter),
		failure,
		step.Now.UnixMilli(),
		step.Threshold,
		step.Window.Milliseconds(),
	).Int64Slice()
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return model.LockTransition{}, err
	case err != nil:
		return model.LockTransition{}, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	case len(res) != 3:
		return model.LockTransition{}, fmt.Errorf("%w: unexpected lua result", model.ErrStoreUnavailable)
	}

	tr := model.LockTransition{
		State: model.LockState{Count: int(res[1]), LockUntil: parseMillis(strconv.FormatInt(res[2], 10))},
	}
	switch res[0] {
	case -1:
		return model.LockTransition{}, model.ErrNotFound
	case 0:
	case 1:
		tr.Locked = true
	case 2:
		tr.Tripped = true
	default:
		return model.LockTransition{}, fmt.Errorf("%w: unexpected lua status %d", model.ErrStoreUnavailable, res[0])
	}
	return tr, nil
}

func encodeAccount(a model.Account) map[string]any {
	return map[string]any{
		"id":                a.ID,
		"kind":              string(a.Kind),
		"email":             a.Email,
		"phone":             a.Phone,
		"password_hash":     a.PasswordHash,
		"is_active":         formatBool(a.IsActive),
		"email_verified":    formatBool(a.EmailVerified),
		"phone_verified":    formatBool(a.PhoneVerified),
		"login_count":       strconv.Itoa(a.Login.Count),
		"login_lock_until":  formatMillis(a.Login.LockUntil),
		"verify_count":      strconv.Itoa(a.OTPVerify.Count),
		"verify_lock_until": formatMillis(a.OTPVerify.LockUntil),
		"resend_count":      strconv.Itoa(a.Resend.Count),
		"resend_lock_until": formatMillis(a.Resend.LockUntil),
		"created_at":        formatMillis(a.CreatedAt),
	}
}

func decodeAccount(v map[string]string) (model.Account, error) {
	kind := model.Kind(v["kind"])
	if v["id"] == "" || !kind.Valid() {
		return model.Account{}, errors.New("redisstore: corrupt account record")
	}
	count := func(field string) int {
		n, _ := strconv.Atoi(v[field])
		return n
	}
	return model.Account{
		ID:            v["id"],
		Kind:          kind,
		Email:         v["email"],
		Phone:         v["phone"],
		PasswordHash:  v["password_hash"],
		IsActive:      v["is_active"] == "1",
		EmailVerified: v["email_verified"] == "1",
		PhoneVerified: v["phone_verified"] == "1",
		Login:         model.LockState{Count: count("login_count"), LockUntil: parseMillis(v["login_lock_until"])},
		OTPVerify:     model.LockState{Count: count("verify_count"), LockUntil: parseMillis(v["verify_lock_until"])},
		Resend:        model.LockState{Count: count("resend_count"), LockUntil: parseMillis(v["resend_lock_until"])},
		CreatedAt:     parseMillis(v["created_at"]),
	}, nil
}
