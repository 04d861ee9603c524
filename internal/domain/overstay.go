package domain

import (
	"fmt"
	"time"
)

type OverstayStatus string

const (
	OverstayStatusDetected        OverstayStatus = "DETECTED"
	OverstayStatusGracePeriod     OverstayStatus = "GRACE_PERIOD"
	OverstayStatusPendingReview   OverstayStatus = "PENDING_REVIEW"
	OverstayStatusPenaltyApproved OverstayStatus = "PENALTY_APPROVED"
	OverstayStatusPenaltyWaived   OverstayStatus = "PENALTY_WAIVED"
	OverstayStatusChargePending   OverstayStatus = "CHARGE_PENDING"
	OverstayStatusChargeSucceeded OverstayStatus = "CHARGE_SUCCEEDED"
	OverstayStatusChargeFailed    OverstayStatus = "CHARGE_FAILED"
	OverstayStatusEscalated       OverstayStatus = "ESCALATED"
	OverstayStatusResolved        OverstayStatus = "RESOLVED"
)

type ResolutionType string

const (
	ResolutionPaid                ResolutionType = "PAID"
	ResolutionWaived              ResolutionType = "WAIVED"
	ResolutionExtended            ResolutionType = "EXTENDED"
	ResolutionRemoved             ResolutionType = "REMOVED"
	ResolutionEscalatedCollection ResolutionType = "ESCALATED_COLLECTION"
	ResolutionRefunded            ResolutionType = "REFUNDED"
)

// OverstayAction is an input to the status transition table. Every status
// mutation in the engine goes through Transition with one of these.
type OverstayAction string

const (
	ActionEnterGrace      OverstayAction = "ENTER_GRACE"
	ActionAdvanceReview   OverstayAction = "ADVANCE_REVIEW"
	ActionApprovePenalty  OverstayAction = "APPROVE_PENALTY"
	ActionWaivePenalty    OverstayAction = "WAIVE_PENALTY"
	ActionBeginCharge     OverstayAction = "BEGIN_CHARGE"
	ActionChargeSucceeded OverstayAction = "CHARGE_SUCCEEDED"
	ActionChargeFailed    OverstayAction = "CHARGE_FAILED"
	ActionEscalate        OverstayAction = "ESCALATE"
	ActionResolve         OverstayAction = "RESOLVE"
)

// overstayTransitions is the single source of truth for allowed status moves.
// CHARGE_FAILED and ESCALATED both accept BEGIN_CHARGE so an operator can force
// a re-attempt; the automatic path never does.
var overstayTransitions = map[OverstayStatus]map[OverstayAction]OverstayStatus{
	OverstayStatusDetected: {
		ActionEnterGrace:    OverstayStatusGracePeriod,
		ActionAdvanceReview: OverstayStatusPendingReview,
	},
	OverstayStatusGracePeriod: {
		ActionAdvanceReview: OverstayStatusPendingReview,
	},
	OverstayStatusPendingReview: {
		ActionApprovePenalty: OverstayStatusPenaltyApproved,
		ActionWaivePenalty:   OverstayStatusPenaltyWaived,
	},
	OverstayStatusPenaltyApproved: {
		ActionBeginCharge:  OverstayStatusChargePending,
		ActionChargeFailed: OverstayStatusChargeFailed,
	},
	OverstayStatusChargePending: {
		ActionChargeSucceeded: OverstayStatusChargeSucceeded,
		ActionChargeFailed:    OverstayStatusChargeFailed,
		ActionEscalate:        OverstayStatusEscalated,
		// Crash recovery: a record stuck mid-attempt may start over.
		ActionBeginCharge: OverstayStatusChargePending,
	},
	OverstayStatusChargeSucceeded: {
		ActionResolve: OverstayStatusResolved,
	},
	OverstayStatusChargeFailed: {
		ActionBeginCharge:    OverstayStatusChargePending,
		ActionApprovePenalty: OverstayStatusPenaltyApproved,
		ActionWaivePenalty:   OverstayStatusPenaltyWaived,
	},
	OverstayStatusEscalated: {
		ActionBeginCharge:  OverstayStatusChargePending,
		ActionChargeFailed: OverstayStatusChargeFailed,
		ActionResolve:      OverstayStatusResolved,
	},
}

// Transition returns the status reached by applying action to from, or a
// state-conflict error when the table does not allow the move.
func Transition(from OverstayStatus, action OverstayAction) (OverstayStatus, error) {
	actions, ok := overstayTransitions[from]
	if !ok {
		return "", fmt.Errorf("%w: status %s accepts no actions", ErrStateConflict, from)
	}
	to, ok := actions[action]
	if !ok {
		return "", fmt.Errorf("%w: action %s not allowed in status %s", ErrStateConflict, action, from)
	}
	return to, nil
}

// OpenOverstayStatuses are the statuses the detector treats as the current
// record for a booking's overdue period. At most one open record exists per
// idempotency key.
var OpenOverstayStatuses = []OverstayStatus{
	OverstayStatusDetected,
	OverstayStatusGracePeriod,
	OverstayStatusPendingReview,
	OverstayStatusChargeFailed,
}

// IsTerminal reports whether no detector run or manager decision may move the
// record again. ESCALATED is not terminal: the webhook or a forced re-charge
// can still resolve it.
func (s OverstayStatus) IsTerminal() bool {
	switch s {
	case OverstayStatusChargeSucceeded, OverstayStatusPenaltyWaived, OverstayStatusResolved:
		return true
	}
	return false
}

// OverstayRecord tracks one overdue period for a booking through the penalty
// lifecycle. It is the only entity the charging engine mutates.
type OverstayRecord struct {
	ID             int64  `json:"id"`
	BookingID      int64  `json:"booking_id"`
	IdempotencyKey string `json:"idempotency_key"`

	EndDate                time.Time `json:"end_date"`
	DaysOverdue            int       `json:"days_overdue"`
	GracePeriodEndsAt      time.Time `json:"grace_period_ends_at"`
	DailyRateCents         int64     `json:"daily_rate_cents"`
	PenaltyRate            string    `json:"penalty_rate"` // decimal string, e.g. "0.10"
	CalculatedPenaltyCents int64     `json:"calculated_penalty_cents"`
	FinalPenaltyCents      *int64    `json:"final_penalty_cents,omitempty"`

	Status         OverstayStatus  `json:"status"`
	ResolutionType *ResolutionType `json:"resolution_type,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	Notes          string          `json:"notes,omitempty"`

	PaymentIntentID *string `json:"payment_intent_id,omitempty"`
	ChargeID        *string `json:"charge_id,omitempty"`
	RefundID        *string `json:"refund_id,omitempty"`

	RefundedCents int64 `json:"refunded_cents"`

	DetectedAt        time.Time  `json:"detected_at"`
	PenaltyApprovedAt *time.Time `json:"penalty_approved_at,omitempty"`
	ChargeAttemptedAt *time.Time `json:"charge_attempted_at,omitempty"`
	ChargeSucceededAt *time.Time `json:"charge_succeeded_at,omitempty"`
	ChargeFailedAt    *time.Time `json:"charge_failed_at,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`

	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// OverstayIdempotencyKey derives the stable per-overdue-period key: one open
// record per booking per calendar end date, enforced unique in storage.
func OverstayIdempotencyKey(bookingID int64, endDate time.Time) string {
	return fmt.Sprintf("overstay:%d:%s", bookingID, endDate.UTC().Format("2006-01-02"))
}

// ChargeIdempotencyKey derives the gateway request key for a charge attempt.
// Same record, same day, same key: a retried network call cannot double-charge.
func ChargeIdempotencyKey(recordID int64, day time.Time) string {
	return fmt.Sprintf("overstay-charge:%d:%s", recordID, day.UTC().Format("2006-01-02"))
}
