// Package model holds the persisted records shared by kindauth and its store
// backends: accounts, OTP challenges and blacklisted token ids.
package model
