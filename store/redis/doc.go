// Package redisstore persists kindauth accounts, OTP challenges and the token
// blacklist in Redis.
//
// Account lock state is updated with WATCH/MULTI optimistic transactions and
// retried on conflict. OTP verification runs as a single Lua script so that
// the comparison and the attempt increment cannot interleave.
package redisstore
