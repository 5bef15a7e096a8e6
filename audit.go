package sessionkit

import (
	"context"
	"errors"
	"io"
	"time"

	internalaudit "github.com/tijariwise/sessionkit/internal/audit"
)

// AuditEvent is a structured record of a session lifecycle operation.
type AuditEvent = internalaudit.Event

// AuditSink receives emitted audit events.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers audit events into a channel for test and pipeline use.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON audit record per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a JSONWriterSink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginLocked           = "login_locked"
	auditEventLogout                = "logout"
	auditEventForcedLogout          = "forced_logout"
	auditEventBiometricLoginSuccess = "biometric_login_success"
	auditEventBiometricLoginFailure = "biometric_login_failure"
	auditEventBiometricExpired      = "biometric_credential_expired"
	auditEventBiometricEnrolled     = "biometric_enrolled"
	auditEventBiometricDisabled     = "biometric_disabled"
)

func (c *Client) emitAudit(ctx context.Context, eventType string, success bool, email string, cause error, meta map[string]string) {
	if c == nil || c.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		Email:     email,
		DeviceID:  deviceIDFromContext(ctx),
		Success:   success,
		Metadata:  meta,
	}
	if cause != nil {
		event.Error = auditErrorString(cause)
	}
	c.audit.Emit(ctx, event)
}

// auditErrorString maps errors to stable codes so sinks never depend on
// message wording.
func auditErrorString(err error) string {
	switch {
	case errors.Is(err, ErrLoginLocked):
		return "login_locked"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, ErrBiometricUnavailable):
		return "biometric_unavailable"
	case errors.Is(err, ErrBiometricDenied):
		return "biometric_denied"
	case errors.Is(err, ErrNoStoredCredential):
		return "no_stored_credential"
	case errors.Is(err, ErrCredentialExpired):
		return "credential_expired"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrLoginUnavailable):
		return "login_unavailable"
	default:
		return "internal_error"
	}
}

// AuditDropped returns how many audit events were discarded because the
// dispatch buffer was full.
func (c *Client) AuditDropped() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Dropped()
}
