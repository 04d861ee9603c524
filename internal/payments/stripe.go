package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"storhub-backend/internal/logger"
)

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) CreateOffSessionCharge(ctx context.Context, p ChargeParams) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(p.AmountCents),
		Currency:      stripe.String(p.Currency),
		Customer:      stripe.String(p.CustomerRef),
		PaymentMethod: stripe.String(p.PaymentMethodRef),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
		Description:   stripe.String(p.Description),
	}
	params.Context = ctx
	params.SetIdempotencyKey(p.IdempotencyKey)
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.DestinationAccount != "" {
		params.TransferData = &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(p.DestinationAccount),
		}
		if p.PlatformFeeCents > 0 {
			params.ApplicationFeeAmount = stripe.Int64(p.PlatformFeeCents)
		}
	}

	logger.ExternalServiceCall("stripe", "PaymentIntents.New", "amount_cents", p.AmountCents, "idempotency_key", p.IdempotencyKey)
	pi, err := g.api.PaymentIntents.New(params)
	logger.ExternalServiceResult("stripe", "PaymentIntents.New", err)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			// Declines and SCA challenges come back as card errors; both are
			// charge failures, not transport errors.
			result := &ChargeResult{
				Succeeded:     false,
				Status:        string(stripeErr.Code),
				FailureReason: stripeErr.Msg,
			}
			if stripeErr.PaymentIntent != nil {
				result.PaymentIntentID = stripeErr.PaymentIntent.ID
			}
			return result, nil
		}
		return nil, err
	}

	result := &ChargeResult{
		Status:          string(pi.Status),
		PaymentIntentID: pi.ID,
	}
	if pi.LatestCharge != nil {
		result.ChargeID = pi.LatestCharge.ID
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result.Succeeded = true
	case stripe.PaymentIntentStatusRequiresAction:
		result.FailureReason = "strong customer authentication required"
	default:
		result.FailureReason = fmt.Sprintf("payment intent in status %s", pi.Status)
	}
	return result, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		ExpiresAt:  stripe.Int64(p.ExpiresAt.Unix()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.Currency),
					UnitAmount: stripe.Int64(p.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.DestinationAccount != "" {
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(p.DestinationAccount),
			},
		}
		if p.PlatformFeeCents > 0 {
			params.PaymentIntentData.ApplicationFeeAmount = stripe.Int64(p.PlatformFeeCents)
		}
	}

	logger.ExternalServiceCall("stripe", "CheckoutSessions.New", "amount_cents", p.AmountCents)
	session, err := g.api.CheckoutSessions.New(params)
	logger.ExternalServiceResult("stripe", "CheckoutSessions.New", err)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, chargeRef string, amountCents int64, reason string) (string, error) {
	params := &stripe.RefundParams{
		Charge: stripe.String(chargeRef),
		Amount: stripe.Int64(amountCents),
	}
	params.Context = ctx
	params.AddMetadata("reason", reason)

	logger.ExternalServiceCall("stripe", "Refunds.New", "charge", chargeRef, "amount_cents", amountCents)
	ref, err := g.api.Refunds.New(params)
	logger.ExternalServiceResult("stripe", "Refunds.New", err)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (g *StripeGateway) GetFeeBreakdown(ctx context.Context, chargeRef string) (*FeeBreakdown, error) {
	params := &stripe.ChargeParams{}
	params.Context = ctx
	params.AddExpand("balance_transaction")

	ch, err := g.api.Charges.Get(chargeRef, params)
	if err != nil {
		return nil, err
	}
	if ch.BalanceTransaction == nil {
		return nil, fmt.Errorf("charge %s has no balance transaction", chargeRef)
	}
	return &FeeBreakdown{
		ProcessingFeeCents: ch.BalanceTransaction.Fee,
		NetAmountCents:     ch.BalanceTransaction.Net,
		PlatformFeeCents:   ch.ApplicationFeeAmount,
	}, nil
}
