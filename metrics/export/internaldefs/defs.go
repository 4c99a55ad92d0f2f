package internaldefs

import (
	kindauth "github.com/MrEthical07/kindauth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   kindauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   kindauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter exported under the kindauth_ prefix.
var CounterDefs = []CounterDef{
	{ID: kindauth.MetricLoginSuccess, Name: "kindauth_login_success_total", Help: "Successful logins."},
	{ID: kindauth.MetricLoginFailure, Name: "kindauth_login_failure_total", Help: "Rejected passwords and unknown identities."},
	{ID: kindauth.MetricLoginLocked, Name: "kindauth_login_locked_total", Help: "Logins refused by the login lockout."},
	{ID: kindauth.MetricLoginInactive, Name: "kindauth_login_inactive_total", Help: "Correct passwords on accounts awaiting activation."},
	{ID: kindauth.MetricPasswordRehash, Name: "kindauth_password_rehash_total", Help: "Password digests upgraded on login."},
	{ID: kindauth.MetricOTPIssued, Name: "kindauth_otp_issued_total", Help: "Challenges written to the ledger."},
	{ID: kindauth.MetricOTPDeliveryFailure, Name: "kindauth_otp_delivery_failure_total", Help: "Challenges the gateway failed to deliver."},
	{ID: kindauth.MetricOTPVerified, Name: "kindauth_otp_verified_total", Help: "Successful code verifications."},
	{ID: kindauth.MetricOTPInvalid, Name: "kindauth_otp_invalid_total", Help: "Wrong codes with attempts remaining."},
	{ID: kindauth.MetricOTPExpired, Name: "kindauth_otp_expired_total", Help: "Codes submitted after expiry."},
	{ID: kindauth.MetricOTPExhausted, Name: "kindauth_otp_exhausted_total", Help: "Codes submitted against exhausted challenges."},
	{ID: kindauth.MetricOTPLocked, Name: "kindauth_otp_locked_total", Help: "Verifications refused by the verify lockout."},
	{ID: kindauth.MetricResendLocked, Name: "kindauth_otp_resend_locked_total", Help: "Resends refused by the resend lockout."},
	{ID: kindauth.MetricAccountActivated, Name: "kindauth_account_activated_total", Help: "Accounts activated by their final channel verification."},
	{ID: kindauth.MetricAccountCreated, Name: "kindauth_account_created_total", Help: "Registered accounts."},
	{ID: kindauth.MetricAccountDuplicate, Name: "kindauth_account_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: kindauth.MetricTokenIssued, Name: "kindauth_token_issued_total", Help: "Access/refresh pairs issued."},
	{ID: kindauth.MetricTokenRejected, Name: "kindauth_token_rejected_total", Help: "Bearer tokens rejected by Authenticate."},
	{ID: kindauth.MetricLogout, Name: "kindauth_logout_total", Help: "Tokens revoked by logout."},
	{ID: kindauth.MetricRefreshSuccess, Name: "kindauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: kindauth.MetricRefreshFailure, Name: "kindauth_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: kindauth.MetricRefreshReuse, Name: "kindauth_refresh_reuse_total", Help: "Refresh tokens presented after revocation."},
	{ID: kindauth.MetricPasswordResetRequest, Name: "kindauth_password_reset_request_total", Help: "Password reset codes issued."},
	{ID: kindauth.MetricPasswordResetSuccess, Name: "kindauth_password_reset_success_total", Help: "Completed password resets."},
	{ID: kindauth.MetricBlacklistSwept, Name: "kindauth_blacklist_swept_total", Help: "Blacklist rows removed by the sweeper."},
}

// HistogramDefs lists the latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: kindauth.MetricAuthenticateLatency, Name: "kindauth_authenticate_latency_seconds", Help: "Authenticate latency in seconds."},
}

// HistogramBounds are the finite upper bounds, in seconds, of the engine's
// eight latency buckets. The eighth bucket is unbounded.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, unbounded last, for exporters that
// need one instrument per bucket.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies a snapshot's bucket slice into a fixed array,
// zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
