package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/kindauth/model"
	"github.com/redis/go-redis/v9"
)

const sweepBatch = 500

// Blacklist stores one key per revoked jti plus a sorted index by revocation
// time used by Sweep.
type Blacklist struct {
	redis redis.UniversalClient
	keys  keyspace
}

func NewBlacklist(client redis.UniversalClient, prefix string) *Blacklist {
	return &Blacklist{redis: client, keys: newKeyspace(prefix)}
}

// Revoke records the token. Revoking a known jti keeps the first timestamp
// and reports inserted=false.
func (b *Blacklist) Revoke(ctx context.Context, tok model.BlacklistedToken) (bool, error) {
	var setNX *redis.BoolCmd
	_, err := b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setNX = pipe.SetNX(ctx, b.keys.blacklisted(tok.JTI), string(tok.Kind), 0)
		pipe.ZAddNX(ctx, b.keys.blacklistIndex(), redis.Z{
			Score:  float64(tok.BlacklistedAt.UnixMilli()),
			Member: tok.JTI,
		})
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return setNX.Val(), nil
}

func (b *Blacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := b.redis.Exists(ctx, b.keys.blacklisted(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// Sweep removes entries revoked strictly before cutoff.
func (b *Blacklist) Sweep(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	max := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)
	for {
		jtis, err := b.redis.ZRangeByScore(ctx, b.keys.blacklistIndex(), &redis.ZRangeBy{
			Min:   "-inf",
			Max:   max,
			Count: sweepBatch,
		}).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
		}
		if len(jtis) == 0 {
			return removed, nil
		}

		keys := make([]string, len(jtis))
		members := make([]any, len(jtis))
		for i, jti := range jtis {
			keys[i] = b.keys.blacklisted(jti)
			members[i] = jti
		}
		_, err = b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, keys...)
			pipe.ZRem(ctx, b.keys.blacklistIndex(), members...)
			return nil
		})
		if err != nil {
			return removed, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
		}
		removed += int64(len(jtis))
		if len(jtis) < sweepBatch {
			return removed, nil
		}
	}
}
