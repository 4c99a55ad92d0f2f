// Package pgstore persists kindauth accounts, OTP challenges and the token
// blacklist in PostgreSQL.
//
// Lock-state updates and OTP verification take a row lock with
// SELECT ... FOR UPDATE inside a transaction. Timestamps are stored as unix
// milliseconds; 0 means unset.
package pgstore
