package redisstore

import (
	"strconv"
	"time"

	"github.com/MrEthical07/kindauth/model"
)

const defaultPrefix = "ka"

type keyspace struct {
	prefix string
}

func newKeyspace(prefix string) keyspace {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return keyspace{prefix: prefix}
}

func (k keyspace) account(id string) string {
	return k.prefix + ":acct:" + id
}

func (k keyspace) index(kind model.Kind, ch model.Channel, value string) string {
	return k.prefix + ":acct:idx:" + string(kind) + ":" + string(ch) + ":" + value
}

func (k keyspace) challenge(key model.ChallengeKey) string {
	return k.prefix + ":otp:" + key.AccountID + ":" + string(key.Channel) + ":" + string(key.Purpose)
}

func (k keyspace) blacklisted(jti string) string {
	return k.prefix + ":bl:" + jti
}

func (k keyspace) blacklistIndex() string {
	return k.prefix + ":bl:index"
}

func formatMillis(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
