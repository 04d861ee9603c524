package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storhub-backend/internal/domain"
	"storhub-backend/internal/logger"
)

// RefundPenalty reverses a succeeded penalty charge, in full or in part. A
// full refund resolves the record as REFUNDED; a partial refund leaves the
// charge in place and records the amount returned.
func (s *overstayService) RefundPenalty(ctx context.Context, req RefundRequest) (*domain.OverstayRecord, error) {
	rec, err := s.overstayRepo.GetByID(ctx, req.OverstayRecordID)
	if err != nil {
		return nil, err
	}
	if !refundable(rec) {
		return nil, fmt.Errorf("%w: record %d is %s, refunds require a succeeded charge",
			domain.ErrStateConflict, rec.ID, rec.Status)
	}
	if rec.ChargeID == nil || *rec.ChargeID == "" {
		return nil, fmt.Errorf("%w: record %d has no external charge reference, refund manually at the gateway",
			domain.ErrValidation, rec.ID)
	}

	chargedCents := s.chargedAmount(ctx, rec)
	remaining := chargedCents - rec.RefundedCents
	refundCents := remaining
	if req.PartialAmountCents != nil {
		refundCents = *req.PartialAmountCents
	}
	if refundCents <= 0 {
		return nil, fmt.Errorf("%w: refund amount must be positive", domain.ErrValidation)
	}
	if refundCents > remaining {
		return nil, fmt.Errorf("%w: refund amount %d exceeds remaining charged amount %d",
			domain.ErrValidation, refundCents, remaining)
	}

	refundRef, err := s.gateway.Refund(ctx, *rec.ChargeID, refundCents, req.Reason)
	if err != nil {
		return nil, fmt.Errorf("gateway refund failed: %w", err)
	}

	now := time.Now()
	full := rec.RefundedCents+refundCents >= chargedCents
	prev := rec.Status
	rec.RefundID = &refundRef
	rec.RefundedCents += refundCents
	if full {
		refunded := domain.ResolutionRefunded
		rec.ResolutionType = &refunded
		if rec.Status == domain.OverstayStatusChargeSucceeded {
			next, terr := domain.Transition(rec.Status, domain.ActionResolve)
			if terr != nil {
				return nil, terr
			}
			rec.Status = next
		}
		rec.ResolvedAt = &now
	}
	rec.Notes = appendNote(rec.Notes, fmt.Sprintf("Refund of %d cents: %s", refundCents, req.Reason))
	if err := s.overstayRepo.Update(ctx, rec); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, &domain.OverstayHistoryEntry{
		OverstayRecordID: rec.ID,
		PreviousStatus:   prev,
		NewStatus:        rec.Status,
		EventType:        domain.HistoryEventRefund,
		EventSource:      domain.EventSourceManager,
		Description:      fmt.Sprintf("Refunded %d of %d cents: %s", refundCents, chargedCents, req.Reason),
		Metadata: map[string]string{
			"refund_ref":    refundRef,
			"refund_cents":  fmt.Sprintf("%d", refundCents),
			"full_refund":   fmt.Sprintf("%t", full),
			"charged_cents": fmt.Sprintf("%d", chargedCents),
		},
		CreatedBy: &req.RefundedBy,
	})

	s.reconcileRefund(ctx, rec, refundCents, refundRef, full)
	s.notifyRefund(ctx, rec, refundCents)
	return rec, nil
}

// refundable accepts a record whose charge succeeded, whether it still sits
// at CHARGE_SUCCEEDED or was auto-resolved as PAID.
func refundable(rec *domain.OverstayRecord) bool {
	if rec.Status == domain.OverstayStatusChargeSucceeded {
		return true
	}
	return rec.Status == domain.OverstayStatusResolved &&
		rec.ResolutionType != nil && *rec.ResolutionType == domain.ResolutionPaid
}

// chargedAmount prefers the reconciled billing entry total (base plus tax);
// the approved penalty is the fallback when no entry was written.
func (s *overstayService) chargedAmount(ctx context.Context, rec *domain.OverstayRecord) int64 {
	if entry, err := s.billingRepo.GetByOverstayRecord(ctx, rec.ID); err == nil {
		return entry.AmountCents
	} else if !errors.Is(err, domain.ErrNotFound) {
		logger.Warn("Could not load billing entry for refund", "overstay_record_id", rec.ID, "error", err)
	}
	if rec.FinalPenaltyCents != nil {
		return *rec.FinalPenaltyCents
	}
	return 0
}

func (s *overstayService) reconcileRefund(ctx context.Context, rec *domain.OverstayRecord, refundCents int64, refundRef string, full bool) {
	entry, err := s.billingRepo.GetByOverstayRecord(ctx, rec.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Could not load billing entry for refund reconciliation", "overstay_record_id", rec.ID, "error", err)
		}
		return
	}
	entry.RefundedCents += refundCents
	entry.ExternalRefundRef = &refundRef
	if full {
		entry.Status = domain.BillingEntryStatusRefunded
	} else {
		entry.Status = domain.BillingEntryStatusPartiallyRefunded
	}
	if err := s.billingRepo.Update(ctx, entry); err != nil {
		logger.Error("Failed to update billing entry after refund", "overstay_record_id", rec.ID, "error", err)
	}
}

func (s *overstayService) notifyRefund(ctx context.Context, rec *domain.OverstayRecord, refundCents int64) {
	booking, err := s.bookingRepo.GetByID(ctx, rec.BookingID)
	if err != nil {
		logger.Warn("Could not load booking for refund notification", "overstay_record_id", rec.ID, "error", err)
		return
	}
	renter, err := s.bookingRepo.GetRenter(ctx, booking.RenterID)
	if err != nil {
		logger.Warn("Could not load renter for refund notification", "overstay_record_id", rec.ID, "error", err)
		return
	}
	if err := s.emailSvc.SendRefundIssued(ctx, renter.Email, renter.Name, refundCents); err != nil {
		logger.Warn("Failed to email renter about refund", "overstay_record_id", rec.ID, "error", err)
	}
	s.createNotification(ctx, renter.ID, "Penalty Refunded",
		fmt.Sprintf("A refund of %d cents was issued for your overstay penalty", refundCents),
		map[string]string{"type": "PENALTY_REFUNDED", "overstay_record_id": fmt.Sprintf("%d", rec.ID)})
}
