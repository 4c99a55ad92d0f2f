package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/kindauth/internal/lockout"
	"github.com/MrEthical07/kindauth/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, kind, email, phone, password_hash, is_active,
       email_verified, phone_verified,
       login_count, login_lock_until, verify_count, verify_lock_until,
       resend_count, resend_lock_until, created_at`

// AccountStore implements the credential store on the accounts table.
type AccountStore struct {
	pool dbPool
	now  func() time.Time
}

func NewAccountStore(pool dbPool) *AccountStore {
	return &AccountStore{pool: pool, now: time.Now}
}

func (s *AccountStore) Create(ctx context.Context, acct *model.Account) error {
	if acct == nil || !acct.Kind.Valid() || (acct.Email == "" && acct.Phone == "") {
		return errors.New("pgstore: account requires a kind and an email or phone")
	}
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = s.now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		acct.ID, string(acct.Kind), acct.Email, acct.Phone, acct.PasswordHash, acct.IsActive,
		acct.EmailVerified, acct.PhoneVerified,
		int64(acct.Login.Count), toMillis(acct.Login.LockUntil),
		int64(acct.OTPVerify.Count), toMillis(acct.OTPVerify.LockUntil),
		int64(acct.Resend.Count), toMillis(acct.Resend.LockUntil),
		toMillis(acct.CreatedAt),
	)
	return wrapErr(err)
}

func (s *AccountStore) Get(ctx context.Context, id string) (model.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	acct, err := scanAccount(row)
	return acct, wrapErr(err)
}

func (s *AccountStore) FindByEmail(ctx context.Context, kind model.Kind, email string) (model.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE kind = $1 AND email = $2`, string(kind), email)
	acct, err := scanAccount(row)
	return acct, wrapErr(err)
}

func (s *AccountStore) FindByPhone(ctx context.Context, kind model.Kind, phone string) (model.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE kind = $1 AND phone = $2`, string(kind), phone)
	acct, err := scanAccount(row)
	return acct, wrapErr(err)
}

// Update locks the row, applies fn and writes back the mutable columns.
func (s *AccountStore) Update(ctx context.Context, id string, fn func(*model.Account) error) (model.Account, error) {
	var out model.Account
	var userErr error

	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := scanAccount(tx.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		next := current
		if err := fn(&next); err != nil {
			userErr = err
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE accounts SET
				password_hash = $2, is_active = $3,
				email_verified = $4, phone_verified = $5,
				login_count = $6, login_lock_until = $7,
				verify_count = $8, verify_lock_until = $9,
				resend_count = $10, resend_lock_until = $11
			WHERE id = $1
		`,
			id, next.PasswordHash, next.IsActive,
			next.EmailVerified, next.PhoneVerified,
			int64(next.Login.Count), toMillis(next.Login.LockUntil),
			int64(next.OTPVerify.Count), toMillis(next.OTPVerify.LockUntil),
			int64(next.Resend.Count), toMillis(next.Resend.LockUntil),
		)
		if err != nil {
			return err
		}

		next.ID, next.Kind, next.Email, next.Phone, next.CreatedAt =
			current.ID, current.Kind, current.Email, current.Phone, current.CreatedAt
		out = next
		return nil
	})
	if userErr != nil {
		return model.Account{}, userErr
	}
	if err != nil {
		return model.Account{}, wrapErr(err)
	}
	return out, nil
}

// StepLock applies one lockout outcome under the row lock taken by Update.
func (s *AccountStore) StepLock(ctx context.Context, id string, step model.LockStep) (model.LockTransition, error) {
	if !step.Counter.Valid() {
		return model.LockTransition{}, fmt.Errorf("pgstore: unknown lock counter %q", step.Counter)
	}
	var tr model.LockTransition
	_, err := s.Update(ctx, id, func(a *model.Account) error {
		st := a.Lock(step.Counter)
		tr = lockout.FromStep(step).Step(*st, step.Now, step.Failure)
		*st = tr.State
		return nil
	})
	if err != nil {
		return model.LockTransition{}, err
	}
	return tr, nil
}

func scanAccount(row pgx.Row) (model.Account, error) {
	var (
		a                                    model.Account
		kind                                 string
		loginCount, verifyCount, resendCount int64
		loginUntil, verifyUntil, resendUntil int64
		createdAt                            int64
	)
	err := row.Scan(
		&a.ID, &kind, &a.Email, &a.Phone, &a.PasswordHash, &a.IsActive,
		&a.EmailVerified, &a.PhoneVerified,
		&loginCount, &loginUntil, &verifyCount, &verifyUntil,
		&resendCount, &resendUntil, &createdAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, model.ErrNotFound
	}
	if err != nil {
		return model.Account{}, err
	}
	a.Kind = model.Kind(kind)
	a.Login = model.LockState{Count: int(loginCount), LockUntil: fromMillis(loginUntil)}
	a.OTPVerify = model.LockState{Count: int(verifyCount), LockUntil: fromMillis(verifyUntil)}
	a.Resend = model.LockState{Count: int(resendCount), LockUntil: fromMillis(resendUntil)}
	a.CreatedAt = fromMillis(createdAt)
	return a, nil
}
