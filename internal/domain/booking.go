package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusActive    BookingStatus = "ACTIVE"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Booking is the read-only view of a storage rental consumed from the booking
// store. The penalty engine never mutates bookings.
type Booking struct {
	ID         int64         `json:"id"`
	ListingID  int64         `json:"listing_id"`
	LocationID int64         `json:"location_id"`
	RenterID   int64         `json:"renter_id"`
	StartDate  time.Time     `json:"start_date"`
	EndDate    time.Time     `json:"end_date"`
	Status     BookingStatus `json:"status"`

	// A booking flagged mid-checkout is under a manager's inspection and is
	// skipped by the detector.
	CheckoutInProgress bool `json:"checkout_in_progress"`

	// Gateway references saved at booking time. May be empty; the renter's
	// profile-level references are the fallback.
	GatewayCustomerRef      string `json:"gateway_customer_ref,omitempty"`
	GatewayPaymentMethodRef string `json:"gateway_payment_method_ref,omitempty"`
}

// Listing is a rentable storage unit. DailyRateCents is the base rate the
// overstay surcharge is applied on top of.
type Listing struct {
	ID             int64  `json:"id"`
	LocationID     int64  `json:"location_id"`
	Name           string `json:"name"`
	DailyRateCents int64  `json:"daily_rate_cents"`

	Overstay *PenaltyConfigOverride `json:"-"`
}

// Location is the facility a listing belongs to. It owns the tax rate and the
// operator payout account for destination charges.
type Location struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	OperatorID         int64  `json:"operator_id"`
	OperatorAccountRef string `json:"operator_account_ref,omitempty"`
	TaxRatePercent     string `json:"tax_rate_percent"` // decimal string, e.g. "8.25"

	Overstay *PenaltyConfigOverride `json:"-"`
}

// Renter is the profile-level view of the person charged for an overstay.
type Renter struct {
	ID                      int64  `json:"id"`
	Name                    string `json:"name"`
	Email                   string `json:"email"`
	GatewayCustomerRef      string `json:"gateway_customer_ref,omitempty"`
	GatewayPaymentMethodRef string `json:"gateway_payment_method_ref,omitempty"`
}

// Operator is an operations/administrator account that receives escalation
// summaries and facility payouts.
type Operator struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}
