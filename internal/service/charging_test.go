package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"storhub-backend/internal/domain"
	"storhub-backend/internal/payments"
)

func approvedRecord() *domain.OverstayRecord {
	final := int64(4400)
	return &domain.OverstayRecord{
		ID:                     7,
		BookingID:              1,
		DaysOverdue:            5,
		DailyRateCents:         2000,
		CalculatedPenaltyCents: 4400,
		FinalPenaltyCents:      &final,
		Status:                 domain.OverstayStatusPenaltyApproved,
	}
}

func chargeableBooking() *domain.Booking {
	return &domain.Booking{
		ID:                      1,
		ListingID:               10,
		LocationID:              20,
		RenterID:                30,
		GatewayCustomerRef:      "cus_123",
		GatewayPaymentMethodRef: "pm_123",
	}
}

func taxedLocation() *domain.Location {
	return &domain.Location{
		ID:                 20,
		OperatorID:         40,
		OperatorAccountRef: "acct_op",
		TaxRatePercent:     "8.25",
	}
}

func TestOverstayService_ChargePenalty(t *testing.T) {
	ctx := context.Background()
	managerID := int64(77)

	t.Run("Success Resolves As Paid", func(t *testing.T) {
		f := newFixture()
		rec := approvedRecord()
		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)
		f.bookings.On("GetByID", mock.Anything, rec.BookingID).Return(chargeableBooking(), nil)
		f.bookings.On("GetRenter", mock.Anything, int64(30)).
			Return(&domain.Renter{ID: 30, Name: "Renter", Email: "renter@test.com"}, nil)
		f.bookings.On("GetLocation", mock.Anything, int64(20)).Return(taxedLocation(), nil)
		f.overstays.On("Update", mock.Anything, rec).Return(nil)
		f.history.On("Append", mock.Anything, mock.AnythingOfType("*domain.OverstayHistoryEntry")).Return(nil)

		var charged payments.ChargeParams
		f.gateway.On("CreateOffSessionCharge", mock.Anything, mock.AnythingOfType("payments.ChargeParams")).
			Run(func(args mock.Arguments) { charged = args.Get(1).(payments.ChargeParams) }).
			Return(&payments.ChargeResult{
				Succeeded:       true,
				Status:          "succeeded",
				PaymentIntentID: "pi_1",
				ChargeID:        "ch_1",
			}, nil)

		// Secondary effects after the money moved.
		f.gateway.On("GetFeeBreakdown", mock.Anything, "ch_1").
			Return(&payments.FeeBreakdown{ProcessingFeeCents: 168, NetAmountCents: 4595}, nil)
		var entry *domain.BillingEntry
		f.billing.On("Create", mock.Anything, mock.AnythingOfType("*domain.BillingEntry")).
			Run(func(args mock.Arguments) { entry = args.Get(1).(*domain.BillingEntry) }).Return(nil)
		f.bookings.On("GetListing", mock.Anything, int64(10)).
			Return(&domain.Listing{ID: 10, Name: "Unit 4B"}, nil)
		f.email.On("SendPenaltyCharged", mock.Anything, "renter@test.com", "Renter", "Unit 4B", int64(4763)).Return(nil)
		f.bookings.On("GetOperator", mock.Anything, int64(40)).
			Return(&domain.Operator{ID: 40, Email: "operator@test.com"}, nil)
		f.notes.On("Create", mock.Anything, mock.AnythingOfType("*domain.Notification")).Return(nil)

		outcome, err := f.svc.ChargePenalty(ctx, rec.ID, &managerID)
		assert.NoError(t, err)
		assert.True(t, outcome.Charged)
		assert.False(t, outcome.Escalated)
		assert.Equal(t, domain.OverstayStatusResolved, rec.Status)
		assert.Equal(t, domain.ResolutionPaid, *rec.ResolutionType)
		assert.Equal(t, "pi_1", *rec.PaymentIntentID)

		// 4400 base + 363 tax (8.25%), destination charge to the operator.
		assert.Equal(t, int64(4763), charged.AmountCents)
		assert.Equal(t, "acct_op", charged.DestinationAccount)
		assert.NotEmpty(t, charged.IdempotencyKey)

		assert.Equal(t, int64(4763), entry.AmountCents)
		assert.Equal(t, int64(4400), entry.BaseAmountCents)
		assert.Equal(t, int64(363), entry.TaxAmountCents)
		assert.Equal(t, domain.BillingEntryStatusSettled, entry.Status)
	})

	t.Run("Decline Escalates With Payment Link", func(t *testing.T) {
		f := newFixture()
		rec := approvedRecord()
		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)
		f.bookings.On("GetByID", mock.Anything, rec.BookingID).Return(chargeableBooking(), nil)
		f.bookings.On("GetRenter", mock.Anything, int64(30)).
			Return(&domain.Renter{ID: 30, Name: "Renter", Email: "renter@test.com"}, nil)
		f.bookings.On("GetLocation", mock.Anything, int64(20)).Return(taxedLocation(), nil)
		f.overstays.On("Update", mock.Anything, rec).Return(nil)
		f.history.On("Append", mock.Anything, mock.AnythingOfType("*domain.OverstayHistoryEntry")).Return(nil)

		f.gateway.On("CreateOffSessionCharge", mock.Anything, mock.AnythingOfType("payments.ChargeParams")).
			Return(&payments.ChargeResult{
				Succeeded:       false,
				Status:          "requires_payment_method",
				PaymentIntentID: "pi_declined",
				FailureReason:   "card declined",
			}, nil)
		f.gateway.On("CreateCheckoutSession", mock.Anything, mock.AnythingOfType("payments.CheckoutParams")).
			Return(&payments.CheckoutSession{ID: "cs_1", URL: "https://pay.test/cs_1"}, nil)
		f.email.On("SendPaymentLink", mock.Anything, "renter@test.com", "Renter",
			int64(4763), "https://pay.test/cs_1", "card declined").Return(nil)
		f.notes.On("Create", mock.Anything, mock.AnythingOfType("*domain.Notification")).Return(nil)
		f.bookings.On("ListAdmins", mock.Anything).
			Return([]domain.Operator{{ID: 90, Email: "admin@test.com", IsAdmin: true}}, nil)
		f.email.On("SendEscalationSummary", mock.Anything, "admin@test.com", rec.ID, "Renter",
			int64(4763), 5, "card declined").Return(nil)

		outcome, err := f.svc.ChargePenalty(ctx, rec.ID, nil)
		assert.NoError(t, err)
		assert.False(t, outcome.Charged)
		assert.True(t, outcome.Escalated)
		assert.Equal(t, "https://pay.test/cs_1", outcome.CheckoutURL)
		assert.Equal(t, "card declined", outcome.FailureReason)

		assert.Equal(t, domain.OverstayStatusEscalated, rec.Status)
		assert.Equal(t, domain.ResolutionEscalatedCollection, *rec.ResolutionType)
		assert.Equal(t, "card declined", rec.FailureReason)
		assert.Equal(t, "pi_declined", *rec.PaymentIntentID)

		// Attempt, escalation, payment link and admin summary all audited.
		f.history.AssertNumberOfCalls(t, "Append", 4)
		f.billing.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Gateway Error Escalates Like A Decline", func(t *testing.T) {
		f := newFixture()
		rec := approvedRecord()
		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)
		f.bookings.On("GetByID", mock.Anything, rec.BookingID).Return(chargeableBooking(), nil)
		f.bookings.On("GetRenter", mock.Anything, int64(30)).
			Return(&domain.Renter{ID: 30, Name: "Renter", Email: "renter@test.com"}, nil)
		f.bookings.On("GetLocation", mock.Anything, int64(20)).Return(taxedLocation(), nil)
		f.overstays.On("Update", mock.Anything, rec).Return(nil)
		f.history.On("Append", mock.Anything, mock.AnythingOfType("*domain.OverstayHistoryEntry")).Return(nil)

		f.gateway.On("CreateOffSessionCharge", mock.Anything, mock.AnythingOfType("payments.ChargeParams")).
			Return(nil, fmt.Errorf("connection timeout"))
		f.gateway.On("CreateCheckoutSession", mock.Anything, mock.AnythingOfType("payments.CheckoutParams")).
			Return(nil, fmt.Errorf("connection timeout"))
		f.bookings.On("ListAdmins", mock.Anything).Return([]domain.Operator{}, nil)

		outcome, err := f.svc.ChargePenalty(ctx, rec.ID, nil)
		assert.NoError(t, err)
		assert.True(t, outcome.Escalated)
		assert.Empty(t, outcome.CheckoutURL, "link generation failed, record stays escalated")
		assert.Equal(t, domain.OverstayStatusEscalated, rec.Status)
	})

	t.Run("No Saved Payment Method Fails Without Escalating", func(t *testing.T) {
		f := newFixture()
		rec := approvedRecord()
		booking := chargeableBooking()
		booking.GatewayCustomerRef = ""
		booking.GatewayPaymentMethodRef = ""

		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)
		f.bookings.On("GetByID", mock.Anything, rec.BookingID).Return(booking, nil)
		f.bookings.On("GetRenter", mock.Anything, int64(30)).
			Return(&domain.Renter{ID: 30, Name: "Renter", Email: "renter@test.com"}, nil)
		f.overstays.On("Update", mock.Anything, rec).Return(nil)
		f.history.On("Append", mock.Anything, mock.AnythingOfType("*domain.OverstayHistoryEntry")).Return(nil)

		outcome, err := f.svc.ChargePenalty(ctx, rec.ID, &managerID)
		assert.NoError(t, err)
		assert.False(t, outcome.Charged)
		assert.False(t, outcome.Escalated)
		assert.Equal(t, domain.OverstayStatusChargeFailed, rec.Status)
		assert.Equal(t, "no saved payment method", rec.FailureReason)
		f.gateway.AssertNotCalled(t, "CreateOffSessionCharge", mock.Anything, mock.Anything)
	})

	t.Run("Profile Payment Method Is The Fallback", func(t *testing.T) {
		f := newFixture()
		rec := approvedRecord()
		booking := chargeableBooking()
		booking.GatewayCustomerRef = ""
		booking.GatewayPaymentMethodRef = ""

		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)
		f.bookings.On("GetByID", mock.Anything, rec.BookingID).Return(booking, nil)
		f.bookings.On("GetRenter", mock.Anything, int64(30)).Return(&domain.Renter{
			ID: 30, Name: "Renter", Email: "renter@test.com",
			GatewayCustomerRef: "cus_profile", GatewayPaymentMethodRef: "pm_profile",
		}, nil)
		f.bookings.On("GetLocation", mock.Anything, int64(20)).Return(taxedLocation(), nil)
		f.overstays.On("Update", mock.Anything, rec).Return(nil)
		f.history.On("Append", mock.Anything, mock.AnythingOfType("*domain.OverstayHistoryEntry")).Return(nil)

		var charged payments.ChargeParams
		f.gateway.On("CreateOffSessionCharge", mock.Anything, mock.AnythingOfType("payments.ChargeParams")).
			Run(func(args mock.Arguments) { charged = args.Get(1).(payments.ChargeParams) }).
			Return(&payments.ChargeResult{Succeeded: true, PaymentIntentID: "pi_2", ChargeID: "ch_2"}, nil)
		f.gateway.On("GetFeeBreakdown", mock.Anything, "ch_2").Return(&payments.FeeBreakdown{}, nil)
		f.billing.On("Create", mock.Anything, mock.AnythingOfType("*domain.BillingEntry")).Return(nil)
		f.bookings.On("GetListing", mock.Anything, int64(10)).Return(&domain.Listing{ID: 10, Name: "Unit 4B"}, nil)
		f.email.On("SendPenaltyCharged", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.bookings.On("GetOperator", mock.Anything, int64(40)).Return(&domain.Operator{ID: 40}, nil)
		f.notes.On("Create", mock.Anything, mock.AnythingOfType("*domain.Notification")).Return(nil)

		_, err := f.svc.ChargePenalty(ctx, rec.ID, &managerID)
		assert.NoError(t, err)
		assert.Equal(t, "cus_profile", charged.CustomerRef)
		assert.Equal(t, "pm_profile", charged.PaymentMethodRef)
	})

	t.Run("Unapproved Record Is Not Chargeable", func(t *testing.T) {
		f := newFixture()
		rec := pendingReviewRecord()
		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)

		_, err := f.svc.ChargePenalty(ctx, rec.ID, &managerID)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrStateConflict))
	})

	t.Run("Charging Requires A Positive Amount", func(t *testing.T) {
		f := newFixture()
		rec := approvedRecord()
		rec.FinalPenaltyCents = nil
		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)

		_, err := f.svc.ChargePenalty(ctx, rec.ID, &managerID)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})
}

func TestOverstayService_ResolveFromCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("Escalated Record Resolves As Paid", func(t *testing.T) {
		f := newFixture()
		rec := approvedRecord()
		rec.Status = domain.OverstayStatusEscalated
		escalated := domain.ResolutionEscalatedCollection
		rec.ResolutionType = &escalated
		rec.FailureReason = "card declined"

		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)
		f.overstays.On("Update", mock.Anything, rec).Return(nil)
		f.history.On("Append", mock.Anything, mock.AnythingOfType("*domain.OverstayHistoryEntry")).Return(nil)
		f.bookings.On("GetByID", mock.Anything, rec.BookingID).Return(chargeableBooking(), nil)
		f.bookings.On("GetLocation", mock.Anything, int64(20)).Return(taxedLocation(), nil)
		f.gateway.On("GetFeeBreakdown", mock.Anything, mock.Anything).Return(&payments.FeeBreakdown{}, nil)
		f.billing.On("Create", mock.Anything, mock.AnythingOfType("*domain.BillingEntry")).Return(nil)
		f.bookings.On("GetRenter", mock.Anything, int64(30)).
			Return(&domain.Renter{ID: 30, Name: "Renter", Email: "renter@test.com"}, nil)
		f.bookings.On("GetListing", mock.Anything, int64(10)).Return(&domain.Listing{ID: 10, Name: "Unit 4B"}, nil)
		f.email.On("SendPenaltyCharged", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.bookings.On("GetOperator", mock.Anything, int64(40)).Return(&domain.Operator{ID: 40}, nil)
		f.notes.On("Create", mock.Anything, mock.AnythingOfType("*domain.Notification")).Return(nil)

		err := f.svc.ResolveFromCheckout(ctx, rec.ID, "pi_checkout")
		assert.NoError(t, err)
		assert.Equal(t, domain.OverstayStatusResolved, rec.Status)
		assert.Equal(t, domain.ResolutionPaid, *rec.ResolutionType)
		assert.Equal(t, "pi_checkout", *rec.PaymentIntentID)
		assert.Empty(t, rec.FailureReason)
	})

	t.Run("Already Resolved Is A No-Op", func(t *testing.T) {
		f := newFixture()
		rec := approvedRecord()
		rec.Status = domain.OverstayStatusResolved
		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)

		err := f.svc.ResolveFromCheckout(ctx, rec.ID, "pi_replay")
		assert.NoError(t, err)
		f.overstays.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("Unescalated Record Conflicts", func(t *testing.T) {
		f := newFixture()
		rec := approvedRecord()
		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)

		err := f.svc.ResolveFromCheckout(ctx, rec.ID, "pi_x")
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrStateConflict))
	})
}
