package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"storhub-backend/internal/domain"
	"storhub-backend/internal/service"
)

func chargedRecord() *domain.OverstayRecord {
	rec := approvedRecord()
	chargeID := "ch_1"
	intentID := "pi_1"
	rec.Status = domain.OverstayStatusChargeSucceeded
	rec.ChargeID = &chargeID
	rec.PaymentIntentID = &intentID
	return rec
}

func settledEntry(rec *domain.OverstayRecord) *domain.BillingEntry {
	return &domain.BillingEntry{
		ID:               5,
		BookingID:        rec.BookingID,
		OverstayRecordID: rec.ID,
		AmountCents:      4400,
		BaseAmountCents:  4400,
		Status:           domain.BillingEntryStatusSettled,
	}
}

func (f *fixture) expectRefundNotifications(rec *domain.OverstayRecord) {
	f.bookings.On("GetByID", mock.Anything, rec.BookingID).Return(chargeableBooking(), nil)
	f.bookings.On("GetRenter", mock.Anything, int64(30)).
		Return(&domain.Renter{ID: 30, Name: "Renter", Email: "renter@test.com"}, nil)
	f.email.On("SendRefundIssued", mock.Anything, "renter@test.com", "Renter", mock.Anything).Return(nil)
	f.notes.On("Create", mock.Anything, mock.AnythingOfType("*domain.Notification")).Return(nil)
}

func TestOverstayService_RefundPenalty(t *testing.T) {
	ctx := context.Background()

	t.Run("Partial Refund Keeps The Charge", func(t *testing.T) {
		f := newFixture()
		rec := chargedRecord()
		entry := settledEntry(rec)
		partial := int64(2000)

		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)
		f.billing.On("GetByOverstayRecord", mock.Anything, rec.ID).Return(entry, nil)
		f.gateway.On("Refund", mock.Anything, "ch_1", int64(2000), "damaged unit access").Return("re_1", nil)
		f.overstays.On("Update", mock.Anything, rec).Return(nil)
		f.billing.On("Update", mock.Anything, entry).Return(nil)
		f.history.On("Append", mock.Anything, mock.AnythingOfType("*domain.OverstayHistoryEntry")).Return(nil)
		f.expectRefundNotifications(rec)

		res, err := f.svc.RefundPenalty(ctx, service.RefundRequest{
			OverstayRecordID:   rec.ID,
			Reason:             "damaged unit access",
			RefundedBy:         77,
			PartialAmountCents: &partial,
		})
		assert.NoError(t, err)
		assert.Equal(t, domain.OverstayStatusChargeSucceeded, res.Status)
		assert.Equal(t, int64(2000), res.RefundedCents)
		assert.Nil(t, res.ResolutionType)
		assert.Equal(t, domain.BillingEntryStatusPartiallyRefunded, entry.Status)
		assert.Equal(t, int64(2000), entry.RefundedCents)
	})

	t.Run("Refund Beyond Remaining Is Rejected", func(t *testing.T) {
		f := newFixture()
		rec := chargedRecord()
		rec.RefundedCents = 2000
		over := int64(3000) // only 2400 remains of 4400

		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)
		f.billing.On("GetByOverstayRecord", mock.Anything, rec.ID).Return(settledEntry(rec), nil)

		_, err := f.svc.RefundPenalty(ctx, service.RefundRequest{
			OverstayRecordID:   rec.ID,
			Reason:             "goodwill",
			RefundedBy:         77,
			PartialAmountCents: &over,
		})
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrValidation))
		f.gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Full Refund Resolves As Refunded", func(t *testing.T) {
		f := newFixture()
		rec := chargedRecord()
		entry := settledEntry(rec)

		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)
		f.billing.On("GetByOverstayRecord", mock.Anything, rec.ID).Return(entry, nil)
		f.gateway.On("Refund", mock.Anything, "ch_1", int64(4400), "booking cancelled in error").Return("re_2", nil)
		f.overstays.On("Update", mock.Anything, rec).Return(nil)
		f.billing.On("Update", mock.Anything, entry).Return(nil)
		f.history.On("Append", mock.Anything, mock.AnythingOfType("*domain.OverstayHistoryEntry")).Return(nil)
		f.expectRefundNotifications(rec)

		res, err := f.svc.RefundPenalty(ctx, service.RefundRequest{
			OverstayRecordID: rec.ID,
			Reason:           "booking cancelled in error",
			RefundedBy:       77,
		})
		assert.NoError(t, err)
		assert.Equal(t, domain.OverstayStatusResolved, res.Status)
		assert.Equal(t, domain.ResolutionRefunded, *res.ResolutionType)
		assert.Equal(t, int64(4400), res.RefundedCents)
		assert.NotNil(t, res.ResolvedAt)
		assert.Equal(t, domain.BillingEntryStatusRefunded, entry.Status)
	})

	t.Run("Resolved Paid Record Is Refundable", func(t *testing.T) {
		f := newFixture()
		rec := chargedRecord()
		paid := domain.ResolutionPaid
		rec.Status = domain.OverstayStatusResolved
		rec.ResolutionType = &paid
		entry := settledEntry(rec)

		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)
		f.billing.On("GetByOverstayRecord", mock.Anything, rec.ID).Return(entry, nil)
		f.gateway.On("Refund", mock.Anything, "ch_1", int64(4400), "full reversal").Return("re_3", nil)
		f.overstays.On("Update", mock.Anything, rec).Return(nil)
		f.billing.On("Update", mock.Anything, entry).Return(nil)
		f.history.On("Append", mock.Anything, mock.AnythingOfType("*domain.OverstayHistoryEntry")).Return(nil)
		f.expectRefundNotifications(rec)

		res, err := f.svc.RefundPenalty(ctx, service.RefundRequest{
			OverstayRecordID: rec.ID,
			Reason:           "full reversal",
			RefundedBy:       77,
		})
		assert.NoError(t, err)
		assert.Equal(t, domain.ResolutionRefunded, *res.ResolutionType)
	})

	t.Run("Missing Charge Reference Is Rejected", func(t *testing.T) {
		f := newFixture()
		rec := chargedRecord()
		rec.ChargeID = nil
		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)

		_, err := f.svc.RefundPenalty(ctx, service.RefundRequest{
			OverstayRecordID: rec.ID,
			Reason:           "goodwill",
			RefundedBy:       77,
		})
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})

	t.Run("Uncharged Record Is Not Refundable", func(t *testing.T) {
		f := newFixture()
		rec := approvedRecord()
		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)

		_, err := f.svc.RefundPenalty(ctx, service.RefundRequest{
			OverstayRecordID: rec.ID,
			Reason:           "goodwill",
			RefundedBy:       77,
		})
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrStateConflict))
	})

	t.Run("Gateway Failure Leaves The Record Untouched", func(t *testing.T) {
		f := newFixture()
		rec := chargedRecord()
		f.overstays.On("GetByID", ctx, rec.ID).Return(rec, nil)
		f.billing.On("GetByOverstayRecord", mock.Anything, rec.ID).Return(settledEntry(rec), nil)
		f.gateway.On("Refund", mock.Anything, "ch_1", int64(4400), "goodwill").
			Return("", fmt.Errorf("gateway unavailable"))

		_, err := f.svc.RefundPenalty(ctx, service.RefundRequest{
			OverstayRecordID: rec.ID,
			Reason:           "goodwill",
			RefundedBy:       77,
		})
		assert.Error(t, err)
		assert.Equal(t, int64(0), rec.RefundedCents)
		f.overstays.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}
