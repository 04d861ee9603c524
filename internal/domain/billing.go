package domain

import "time"

type BillingEntryStatus string

const (
	BillingEntryStatusSettled           BillingEntryStatus = "SETTLED"
	BillingEntryStatusRefunded          BillingEntryStatus = "REFUNDED"
	BillingEntryStatusPartiallyRefunded BillingEntryStatus = "PARTIALLY_REFUNDED"
)

// BillingEntry is the reconciled record the revenue/reporting layer reads.
// Created when a penalty charge succeeds, updated when it is refunded.
type BillingEntry struct {
	ID                  int64              `json:"id"`
	BookingID           int64              `json:"booking_id"`
	OverstayRecordID    int64              `json:"overstay_record_id"`
	AmountCents         int64              `json:"amount_cents"`
	BaseAmountCents     int64              `json:"base_amount_cents"`
	TaxAmountCents      int64              `json:"tax_amount_cents"`
	ServiceFeeCents     int64              `json:"service_fee_cents"`
	ManagerRevenueCents int64              `json:"manager_revenue_cents"`
	RefundedCents       int64              `json:"refunded_cents"`
	ExternalChargeRef   string             `json:"external_charge_ref"`
	ExternalRefundRef   *string            `json:"external_refund_ref,omitempty"`
	Status              BillingEntryStatus `json:"status"`
	Metadata            map[string]string  `json:"metadata,omitempty"`
	CreatedOn           time.Time          `json:"created_on"`
	UpdatedOn           time.Time          `json:"updated_on"`
}
