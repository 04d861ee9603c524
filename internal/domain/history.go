package domain

import "time"

type HistoryEventType string

const (
	HistoryEventStatusChange     HistoryEventType = "STATUS_CHANGE"
	HistoryEventPenaltyApproved  HistoryEventType = "PENALTY_APPROVED"
	HistoryEventPenaltyWaived    HistoryEventType = "PENALTY_WAIVED"
	HistoryEventChargeAttempt    HistoryEventType = "CHARGE_ATTEMPT"
	HistoryEventAutoEscalation   HistoryEventType = "AUTO_ESCALATION"
	HistoryEventNotificationSent HistoryEventType = "NOTIFICATION_SENT"
	HistoryEventResolution       HistoryEventType = "RESOLUTION"
	HistoryEventRefund           HistoryEventType = "REFUND"
)

type HistoryEventSource string

const (
	EventSourceCron           HistoryEventSource = "CRON"
	EventSourceManager        HistoryEventSource = "MANAGER"
	EventSourceSystem         HistoryEventSource = "SYSTEM"
	EventSourcePaymentWebhook HistoryEventSource = "PAYMENT_WEBHOOK"
)

// OverstayHistoryEntry is an append-only audit row. Entries are never updated
// or deleted; the ledger is the sole source of truth for reconstructing what
// happened to a record.
type OverstayHistoryEntry struct {
	ID               int64              `json:"id"`
	OverstayRecordID int64              `json:"overstay_record_id"`
	PreviousStatus   OverstayStatus     `json:"previous_status"`
	NewStatus        OverstayStatus     `json:"new_status"`
	EventType        HistoryEventType   `json:"event_type"`
	EventSource      HistoryEventSource `json:"event_source"`
	Description      string             `json:"description"`
	Metadata         map[string]string  `json:"metadata,omitempty"`
	CreatedBy        *int64             `json:"created_by,omitempty"`
	CreatedOn        time.Time          `json:"created_on"`
}
