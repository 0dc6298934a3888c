package domain

import "time"

type AuditEventType string

const (
	AuditOrderCreated         AuditEventType = "ORDER_CREATED"
	AuditPaymentConfirmed     AuditEventType = "PAYMENT_CONFIRMED"
	AuditClaimLinkGenerated   AuditEventType = "CLAIM_LINK_GENERATED"
	AuditClaimAttempted       AuditEventType = "CLAIM_ATTEMPTED"
	AuditClaimSucceeded       AuditEventType = "CLAIM_SUCCEEDED"
	AuditClaimExpired         AuditEventType = "CLAIM_EXPIRED"
	AuditFulfillmentStarted   AuditEventType = "FULFILLMENT_STARTED"
	AuditFulfillmentSucceeded AuditEventType = "FULFILLMENT_SUCCEEDED"
	AuditFulfillmentFailed    AuditEventType = "FULFILLMENT_FAILED"
	AuditFulfillmentRetried   AuditEventType = "FULFILLMENT_RETRIED"
	AuditEmailSent            AuditEventType = "EMAIL_SENT"
	AuditEmailResent          AuditEventType = "EMAIL_RESENT"
	AuditRemainderProcessed   AuditEventType = "REMAINDER_PROCESSED"
	AuditOrderCanceled        AuditEventType = "ORDER_CANCELED"
	AuditAdminAction          AuditEventType = "ADMIN_ACTION"
)

// AuditEvent is an immutable record of a state-changing action on an order.
type AuditEvent struct {
	ID        string
	OrderID   string
	Type      AuditEventType
	Message   string
	Metadata  map[string]any
	CreatedAt time.Time
}
