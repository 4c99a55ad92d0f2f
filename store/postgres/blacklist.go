package pgstore

import (
	"context"
	"time"

	"github.com/MrEthical07/kindauth/model"
)

// Blacklist implements token revocation on blacklisted_tokens.
type Blacklist struct {
	pool dbPool
}

func NewBlacklist(pool dbPool) *Blacklist {
	return &Blacklist{pool: pool}
}

// Revoke inserts the jti once; repeats report inserted=false.
func (b *Blacklist) Revoke(ctx context.Context, tok model.BlacklistedToken) (bool, error) {
	tag, err := b.pool.Exec(ctx, `
		INSERT INTO blacklisted_tokens (jti, kind, blacklisted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING
	`, tok.JTI, string(tok.Kind), toMillis(tok.BlacklistedAt))
	if err != nil {
		return false, wrapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (b *Blacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := b.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blacklisted_tokens WHERE jti = $1)`, jti,
	).Scan(&exists)
	if err != nil {
		return false, wrapErr(err)
	}
	return exists, nil
}

func (b *Blacklist) Sweep(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := b.pool.Exec(ctx, `DELETE FROM blacklisted_tokens WHERE blacklisted_at < $1`, toMillis(cutoff))
	if err != nil {
		return 0, wrapErr(err)
	}
	return tag.RowsAffected(), nil
}
