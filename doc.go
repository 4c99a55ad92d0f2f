// Package kindauth provides the authentication core for a platform whose
// accounts come in several kinds (learner, staff, instructor, organization):
// password login with lockout, one-time passcodes over email and SMS for
// activation and password reset, and JWT sessions with a persistent revocation
// blacklist.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// kindauth is the public surface. It exposes [Engine], [Builder], [Config], the store
// interfaces ([CredentialStore], [OTPLedger], [Blacklist]) and value types. Flow
// orchestration, lockout arithmetic, code generation and audit dispatch live under
// internal/ and are never exported. Backends live in store/redis and store/postgres.
//
// # Invariants
//
//   - Lockout counters change only through [CredentialStore.StepLock], one atomic store step
//     per outcome, so concurrent failures are all counted and never overshoot the threshold.
//   - An OTP code is compared and counted in one atomic store step.
//   - Messages are sent only after the challenge they carry has been committed.
//   - Authenticate checks signature and expiry before touching the blacklist.
package kindauth
