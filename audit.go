package authcore

import (
	"io"

	"github.com/campuskit/authcore/internal/audit"
)

// AuditEvent is one structured security event.
type AuditEvent = audit.Event

// AuditSink receives emitted audit events. Delivery happens on the
// dispatcher goroutine, never on the authentication path.
type AuditSink = audit.Sink

// Audit event names, as they appear in AuditEvent.EventType.
const (
	AuditLoginSuccess     = audit.EventLoginSuccess
	AuditLoginFailure     = audit.EventLoginFailure
	AuditLoginLocked      = audit.EventLoginLocked
	AuditLoginThrottled   = audit.EventLoginThrottled
	AuditIPBlocked        = audit.EventIPBlocked
	AuditMFASuccess       = audit.EventMFASuccess
	AuditMFAFailure       = audit.EventMFAFailure
	AuditTokenRefreshed   = audit.EventTokenRefreshed
	AuditTokenRejected    = audit.EventTokenRejected
	AuditSessionEvicted   = audit.EventSessionEvicted
	AuditLogout           = audit.EventLogout
	AuditLogoutAll        = audit.EventLogoutAll
	AuditPasswordChanged  = audit.EventPasswordChanged
	AuditPasswordReset    = audit.EventPasswordReset
	AuditPasswordRejected = audit.EventPasswordRejected
	AuditAccessDenied     = audit.EventAccessDenied
)

// NewJSONAuditSink writes one JSON object per event to w.
func NewJSONAuditSink(w io.Writer) AuditSink {
	return audit.NewJSONWriterSink(w)
}

// ChannelAuditSink buffers events in a channel for in-process consumers.
type ChannelAuditSink = audit.ChannelSink

// NewChannelAuditSink returns a sink backed by a channel of the given
// capacity.
func NewChannelAuditSink(buffer int) *ChannelAuditSink {
	return audit.NewChannelSink(buffer)
}
