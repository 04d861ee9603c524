package payments

import (
	"context"
	"time"
)

// ChargeParams describes an off-session charge against a saved payment method.
type ChargeParams struct {
	AmountCents      int64
	Currency         string
	CustomerRef      string
	PaymentMethodRef string
	// DestinationAccount routes settlement to the operator's account;
	// PlatformFeeCents is retained by the platform when set.
	DestinationAccount string
	PlatformFeeCents   int64
	IdempotencyKey     string
	Description        string
	Metadata           map[string]string
}

type ChargeResult struct {
	Succeeded       bool
	Status          string
	PaymentIntentID string
	ChargeID        string
	FailureReason   string
}

// CheckoutParams describes a customer-present self-serve payment session.
type CheckoutParams struct {
	AmountCents        int64
	Currency           string
	Description        string
	SuccessURL         string
	CancelURL          string
	DestinationAccount string
	PlatformFeeCents   int64
	ExpiresAt          time.Time
	Metadata           map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type FeeBreakdown struct {
	ProcessingFeeCents int64
	NetAmountCents     int64
	PlatformFeeCents   int64
}

// Gateway is the payment-processor boundary. Constructed once at process
// start and injected; tests substitute a fake.
type Gateway interface {
	CreateOffSessionCharge(ctx context.Context, params ChargeParams) (*ChargeResult, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	Refund(ctx context.Context, chargeRef string, amountCents int64, reason string) (string, error)
	GetFeeBreakdown(ctx context.Context, chargeRef string) (*FeeBreakdown, error)
}
