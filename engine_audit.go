package kindauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/kindauth/model"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginLocked          = "login_locked"
	auditEventLoginInactive        = "login_inactive"
	auditEventOTPIssued            = "otp_issued"
	auditEventOTPDeliveryFailure   = "otp_delivery_failure"
	auditEventOTPVerified          = "otp_verified"
	auditEventOTPFailure           = "otp_failure"
	auditEventOTPLocked            = "otp_locked"
	auditEventResendLocked         = "otp_resend_locked"
	auditEventAccountActivated     = "account_activated"
	auditEventAccountCreated       = "account_created"
	auditEventLogout               = "logout"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshFailure       = "refresh_failure"
	auditEventRefreshReuse         = "refresh_reuse_detected"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventBlacklistSweep       = "blacklist_sweep"
)

// AuditErrorCode is the stable, machine-readable error label recorded on
// failed audit events.
type AuditErrorCode string

const (
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountInactive    AuditErrorCode = "account_inactive"
	auditErrAccountExists      AuditErrorCode = "account_exists"
	auditErrOTPInvalid         AuditErrorCode = "otp_invalid"
	auditErrOTPExpired         AuditErrorCode = "otp_expired"
	auditErrOTPExhausted       AuditErrorCode = "otp_exhausted"
	auditErrOTPNotFound        AuditErrorCode = "otp_not_found"
	auditErrOTPLocked          AuditErrorCode = "otp_locked"
	auditErrResendLocked       AuditErrorCode = "resend_locked"
	auditErrTokenInvalid       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrTokenRevoked       AuditErrorCode = "token_revoked"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	acct model.Account,
	err error,
	metadataBuilder func() map[string]string,
) {
	e.emitAuditToken(ctx, eventType, success, acct.ID, acct.Kind, "", err, metadataBuilder)
}

func (e *Engine) emitAuditToken(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	kind model.Kind,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		Kind:      string(kind),
		TokenID:   tokenID,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrAccountExists):
		return auditErrAccountExists
	case errors.Is(err, ErrOTPInvalid):
		return auditErrOTPInvalid
	case errors.Is(err, ErrOTPExpired):
		return auditErrOTPExpired
	case errors.Is(err, ErrOTPExhausted):
		return auditErrOTPExhausted
	case errors.Is(err, ErrOTPNotFound):
		return auditErrOTPNotFound
	case errors.Is(err, ErrOTPLocked):
		return auditErrOTPLocked
	case errors.Is(err, ErrResendLocked):
		return auditErrResendLocked
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
