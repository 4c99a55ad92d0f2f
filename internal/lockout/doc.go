// Package lockout implements the failed-attempt counter shared by login,
// OTP verification and OTP resend throttling.
//
// Functions here are pure: callers load a model.LockState, apply a
// transition and persist the result inside the store's per-account atomic
// update.
package lockout
