package pgstore

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/MrEthical07/kindauth/model"
	"github.com/jackc/pgx/v5"
)

const challengeColumns = `id, account_id, channel, purpose, code_hash, created_at, expires_at, attempts, verified`

// liveOrder picks the live challenge of a slot. Issue already removes
// superseded rows; the order settles any row left by an issuer on an older
// schema.
const liveOrder = `ORDER BY created_at DESC, id DESC`

// OTPLedger keeps one challenge per slot. Issuing replaces the slot's rows,
// so a newer code supersedes an older one as it does in the Redis ledger.
type OTPLedger struct {
	pool dbPool
}

func NewOTPLedger(pool dbPool) *OTPLedger {
	return &OTPLedger{pool: pool}
}

func (l *OTPLedger) Issue(ctx context.Context, c model.Challenge) error {
	if !c.Key().Valid() || c.ID == "" || c.CodeHash == "" || c.ExpiresAt.IsZero() {
		return errors.New("pgstore: incomplete challenge")
	}
	err := inTx(ctx, l.pool, func(tx pgx.Tx) error {
		// Concurrent issuers for one slot queue here until commit.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, slotLockKey(c.Key())); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM otp_challenges
			WHERE account_id = $1 AND channel = $2 AND purpose = $3
		`, c.AccountID, string(c.Channel), string(c.Purpose)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO otp_challenges (`+challengeColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			c.ID, c.AccountID, string(c.Channel), string(c.Purpose), c.CodeHash,
			toMillis(c.CreatedAt), toMillis(c.ExpiresAt), int64(c.Attempts), c.Verified,
		)
		return err
	})
	return wrapErr(err)
}

func slotLockKey(key model.ChallengeKey) string {
	return "otp:" + key.AccountID + ":" + string(key.Channel) + ":" + string(key.Purpose)
}

func (l *OTPLedger) Verify(ctx context.Context, key model.ChallengeKey, codeHash string, now time.Time, maxAttempts int) (model.VerifyResult, error) {
	var res model.VerifyResult
	err := inTx(ctx, l.pool, func(tx pgx.Tx) error {
		c, err := scanChallenge(tx.QueryRow(ctx, `
			SELECT `+challengeColumns+`
			FROM otp_challenges
			WHERE account_id = $1 AND channel = $2 AND purpose = $3
			`+liveOrder+`
			LIMIT 1
			FOR UPDATE
		`, key.AccountID, string(key.Channel), string(key.Purpose)))
		if errors.Is(err, model.ErrNotFound) {
			res = model.VerifyResult{Outcome: model.OutcomeNotFound}
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case c.Verified:
			res = model.VerifyResult{Outcome: model.OutcomeUsed}
			return nil
		case !now.Before(c.ExpiresAt):
			res = model.VerifyResult{Outcome: model.OutcomeExpired}
			return nil
		case c.Attempts >= maxAttempts:
			res = model.VerifyResult{Outcome: model.OutcomeExhausted}
			return nil
		}

		if subtle.ConstantTimeCompare([]byte(c.CodeHash), []byte(codeHash)) == 1 {
			if _, err := tx.Exec(ctx, `UPDATE otp_challenges SET verified = TRUE WHERE id = $1`, c.ID); err != nil {
				return err
			}
			res = model.VerifyResult{Outcome: model.OutcomeVerified}
			return nil
		}

		var attempts int64
		if err := tx.QueryRow(ctx,
			`UPDATE otp_challenges SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`,
			c.ID,
		).Scan(&attempts); err != nil {
			return err
		}
		if int(attempts) >= maxAttempts {
			res = model.VerifyResult{Outcome: model.OutcomeExhausted}
		} else {
			res = model.VerifyResult{Outcome: model.OutcomeInvalid, Remaining: maxAttempts - int(attempts)}
		}
		return nil
	})
	if err != nil {
		return model.VerifyResult{}, wrapErr(err)
	}
	return res, nil
}

func (l *OTPLedger) Latest(ctx context.Context, key model.ChallengeKey) (model.Challenge, error) {
	c, err := scanChallenge(l.pool.QueryRow(ctx, `
		SELECT `+challengeColumns+`
		FROM otp_challenges
		WHERE account_id = $1 AND channel = $2 AND purpose = $3
		`+liveOrder+`
		LIMIT 1
	`, key.AccountID, string(key.Channel), string(key.Purpose)))
	return c, wrapErr(err)
}

// Purge deletes challenges that expired before the cutoff.
func (l *OTPLedger) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := l.pool.Exec(ctx, `DELETE FROM otp_challenges WHERE expires_at < $1`, toMillis(before))
	if err != nil {
		return 0, wrapErr(err)
	}
	return tag.RowsAffected(), nil
}

func scanChallenge(row pgx.Row) (model.Challenge, error) {
	var (
		c                    model.Challenge
		channel, purpose     string
		createdAt, expiresAt int64
		attempts             int64
	)
	err := row.Scan(&c.ID, &c.AccountID, &channel, &purpose, &c.CodeHash, &createdAt, &expiresAt, &attempts, &c.Verified)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Challenge{}, model.ErrNotFound
	}
	if err != nil {
		return model.Challenge{}, err
	}
	c.Channel = model.Channel(channel)
	c.Purpose = model.Purpose(purpose)
	c.CreatedAt = fromMillis(createdAt)
	c.ExpiresAt = fromMillis(expiresAt)
	c.Attempts = int(attempts)
	return c, nil
}
