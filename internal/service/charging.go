package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"storhub-backend/internal/domain"
	"storhub-backend/internal/logger"
	"storhub-backend/internal/payments"
)

// chargeEntryStatuses lists the statuses a charge attempt may start from.
// CHARGE_PENDING tolerates recovery from a crash mid-attempt; CHARGE_FAILED
// and ESCALATED allow an operator-forced re-attempt. The automatic path
// never retries.
var chargeEntryStatuses = map[domain.OverstayStatus]bool{
	domain.OverstayStatusPenaltyApproved: true,
	domain.OverstayStatusChargeFailed:    true,
	domain.OverstayStatusChargePending:   true,
	domain.OverstayStatusEscalated:       true,
}

// ChargePenalty attempts the off-session charge for an approved penalty. Any
// gateway failure, including declines and SCA challenges, escalates to the
// self-serve payment flow; there is no retry loop.
func (s *overstayService) ChargePenalty(ctx context.Context, recordID int64, triggeredBy *int64) (*ChargeOutcome, error) {
	rec, err := s.overstayRepo.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !chargeEntryStatuses[rec.Status] {
		return nil, fmt.Errorf("%w: record %d is %s, not chargeable", domain.ErrStateConflict, rec.ID, rec.Status)
	}
	if rec.FinalPenaltyCents == nil || *rec.FinalPenaltyCents <= 0 {
		return nil, fmt.Errorf("%w: no amount to charge on record %d", domain.ErrValidation, rec.ID)
	}

	booking, err := s.bookingRepo.GetByID(ctx, rec.BookingID)
	if err != nil {
		return nil, err
	}
	renter, err := s.bookingRepo.GetRenter(ctx, booking.RenterID)
	if err != nil {
		return nil, err
	}

	customerRef, paymentMethodRef := booking.GatewayCustomerRef, booking.GatewayPaymentMethodRef
	if customerRef == "" || paymentMethodRef == "" {
		customerRef, paymentMethodRef = renter.GatewayCustomerRef, renter.GatewayPaymentMethodRef
	}
	if customerRef == "" || paymentMethodRef == "" {
		// Nothing to charge against, so no payment link either. The record
		// surfaces in the review queue for manual follow-up.
		return s.markNoPaymentMethod(ctx, rec, triggeredBy)
	}

	location, err := s.bookingRepo.GetLocation(ctx, booking.LocationID)
	if err != nil {
		return nil, err
	}
	amounts, err := s.computeChargeAmounts(rec, location)
	if err != nil {
		return nil, err
	}

	// The CHARGE_PENDING transition and its audit row are committed before
	// the gateway call so a crash mid-attempt is visible.
	prev := rec.Status
	next, err := domain.Transition(rec.Status, domain.ActionBeginCharge)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	rec.Status = next
	rec.ChargeAttemptedAt = &now
	if err := s.overstayRepo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.appendHistory(ctx, &domain.OverstayHistoryEntry{
		OverstayRecordID: rec.ID,
		PreviousStatus:   prev,
		NewStatus:        rec.Status,
		EventType:        domain.HistoryEventChargeAttempt,
		EventSource:      eventSourceFor(triggeredBy),
		Description:      fmt.Sprintf("Off-session charge attempt for %d cents (base %d, tax %d)", amounts.total, amounts.base, amounts.tax),
		Metadata: map[string]string{
			"amount_cents":      fmt.Sprintf("%d", amounts.total),
			"base_cents":        fmt.Sprintf("%d", amounts.base),
			"tax_cents":         fmt.Sprintf("%d", amounts.tax),
			"service_fee_cents": fmt.Sprintf("%d", amounts.fee),
		},
		CreatedBy: triggeredBy,
	})

	result, err := s.gateway.CreateOffSessionCharge(ctx, payments.ChargeParams{
		AmountCents:        amounts.total,
		Currency:           s.cfg.Currency,
		CustomerRef:        customerRef,
		PaymentMethodRef:   paymentMethodRef,
		DestinationAccount: location.OperatorAccountRef,
		PlatformFeeCents:   amounts.fee,
		IdempotencyKey:     domain.ChargeIdempotencyKey(rec.ID, now),
		Description:        fmt.Sprintf("Overstay penalty for booking %d", rec.BookingID),
		Metadata: map[string]string{
			"overstay_record_id": fmt.Sprintf("%d", rec.ID),
			"booking_id":         fmt.Sprintf("%d", rec.BookingID),
		},
	})
	if err != nil {
		// Transport faults and unexpected gateway errors escalate exactly
		// like a reported decline.
		return s.escalate(ctx, rec, booking, renter, location, amounts, err.Error(), triggeredBy)
	}
	if !result.Succeeded {
		if result.PaymentIntentID != "" {
			rec.PaymentIntentID = &result.PaymentIntentID
		}
		return s.escalate(ctx, rec, booking, renter, location, amounts, result.FailureReason, triggeredBy)
	}
	return s.finalizeCharge(ctx, rec, booking, renter, location, amounts, result, triggeredBy)
}

type chargeAmounts struct {
	base  int64
	tax   int64
	total int64
	fee   int64
}

func (s *overstayService) computeChargeAmounts(rec *domain.OverstayRecord, location *domain.Location) (chargeAmounts, error) {
	base := *rec.FinalPenaltyCents
	taxRate, err := decimal.NewFromString(location.TaxRatePercent)
	if err != nil {
		return chargeAmounts{}, fmt.Errorf("invalid tax rate %q for location %d: %w", location.TaxRatePercent, location.ID, err)
	}
	tax := domain.TaxCents(base, taxRate)
	total := base + tax
	fee := domain.ProcessingFeeCents(total, s.cfg.ProcessingFeePct, s.cfg.ProcessingFeeFixed)
	return chargeAmounts{base: base, tax: tax, total: total, fee: fee}, nil
}

func (s *overstayService) markNoPaymentMethod(ctx context.Context, rec *domain.OverstayRecord, triggeredBy *int64) (*ChargeOutcome, error) {
	const reason = "no saved payment method"

	prev := rec.Status
	if rec.Status != domain.OverstayStatusChargeFailed {
		next, err := domain.Transition(rec.Status, domain.ActionChargeFailed)
		if err != nil {
			return nil, err
		}
		rec.Status = next
	}
	now := time.Now()
	rec.ChargeFailedAt = &now
	rec.FailureReason = reason
	if err := s.overstayRepo.Update(ctx, rec); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, &domain.OverstayHistoryEntry{
		OverstayRecordID: rec.ID,
		PreviousStatus:   prev,
		NewStatus:        rec.Status,
		EventType:        domain.HistoryEventChargeAttempt,
		EventSource:      eventSourceFor(triggeredBy),
		Description:      "Charge not attempted: " + reason,
		CreatedBy:        triggeredBy,
	})
	return &ChargeOutcome{Record: rec, FailureReason: reason}, nil
}

func (s *overstayService) finalizeCharge(
	ctx context.Context,
	rec *domain.OverstayRecord,
	booking *domain.Booking,
	renter *domain.Renter,
	location *domain.Location,
	amounts chargeAmounts,
	result *payments.ChargeResult,
	triggeredBy *int64,
) (*ChargeOutcome, error) {
	prev := rec.Status
	next, err := domain.Transition(rec.Status, domain.ActionChargeSucceeded)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	paid := domain.ResolutionPaid
	rec.Status = next
	rec.ChargeSucceededAt = &now
	rec.PaymentIntentID = &result.PaymentIntentID
	if result.ChargeID != "" {
		rec.ChargeID = &result.ChargeID
	}

	s.appendHistory(ctx, &domain.OverstayHistoryEntry{
		OverstayRecordID: rec.ID,
		PreviousStatus:   prev,
		NewStatus:        rec.Status,
		EventType:        domain.HistoryEventChargeAttempt,
		EventSource:      eventSourceFor(triggeredBy),
		Description:      fmt.Sprintf("Charge succeeded for %d cents", amounts.total),
		Metadata: map[string]string{
			"payment_intent_id": result.PaymentIntentID,
			"charge_id":         result.ChargeID,
			"amount_cents":      fmt.Sprintf("%d", amounts.total),
		},
		CreatedBy: triggeredBy,
	})

	prev = rec.Status
	next, err = domain.Transition(rec.Status, domain.ActionResolve)
	if err != nil {
		return nil, err
	}
	rec.Status = next
	rec.ResolutionType = &paid
	rec.ResolvedAt = &now
	if err := s.overstayRepo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.appendHistory(ctx, &domain.OverstayHistoryEntry{
		OverstayRecordID: rec.ID,
		PreviousStatus:   prev,
		NewStatus:        rec.Status,
		EventType:        domain.HistoryEventResolution,
		EventSource:      domain.EventSourceSystem,
		Description:      "Penalty collected, record resolved",
	})

	// Secondary effects: reconciled billing entry and notifications must not
	// unwind the financial transition that already committed.
	s.recordBillingEntry(ctx, rec, amounts, result.ChargeID)
	s.notifyChargeSucceeded(ctx, rec, booking, renter, location, amounts.total)

	return &ChargeOutcome{Record: rec, Charged: true}, nil
}

func (s *overstayService) recordBillingEntry(ctx context.Context, rec *domain.OverstayRecord, amounts chargeAmounts, chargeRef string) {
	entry := &domain.BillingEntry{
		BookingID:           rec.BookingID,
		OverstayRecordID:    rec.ID,
		AmountCents:         amounts.total,
		BaseAmountCents:     amounts.base,
		TaxAmountCents:      amounts.tax,
		ServiceFeeCents:     amounts.fee,
		ManagerRevenueCents: amounts.total - amounts.fee,
		ExternalChargeRef:   chargeRef,
		Status:              domain.BillingEntryStatusSettled,
		Metadata:            map[string]string{"source": "overstay_penalty"},
	}
	if chargeRef != "" {
		if breakdown, err := s.gateway.GetFeeBreakdown(ctx, chargeRef); err != nil {
			logger.Warn("Could not fetch gateway fee breakdown", "charge_ref", chargeRef, "error", err)
		} else {
			entry.Metadata["gateway_processing_fee_cents"] = fmt.Sprintf("%d", breakdown.ProcessingFeeCents)
			entry.Metadata["gateway_net_cents"] = fmt.Sprintf("%d", breakdown.NetAmountCents)
		}
	}
	if err := s.billingRepo.Create(ctx, entry); err != nil {
		logger.Error("Failed to create billing entry for overstay charge",
			"overstay_record_id", rec.ID, "error", err)
	}
}

func (s *overstayService) notifyChargeSucceeded(ctx context.Context, rec *domain.OverstayRecord, booking *domain.Booking, renter *domain.Renter, location *domain.Location, amountCents int64) {
	listing, err := s.bookingRepo.GetListing(ctx, booking.ListingID)
	listingName := ""
	if err == nil {
		listingName = listing.Name
	}

	if err := s.emailSvc.SendPenaltyCharged(ctx, renter.Email, renter.Name, listingName, amountCents); err != nil {
		logger.Warn("Failed to email renter about penalty charge", "overstay_record_id", rec.ID, "error", err)
	}
	s.createNotification(ctx, renter.ID, "Overstay Penalty Charged",
		fmt.Sprintf("Your saved payment method was charged %d cents for an overstay penalty", amountCents),
		map[string]string{"type": "PENALTY_CHARGED", "overstay_record_id": fmt.Sprintf("%d", rec.ID)})

	operator, err := s.bookingRepo.GetOperator(ctx, location.OperatorID)
	if err != nil {
		logger.Warn("Could not load operator for charge notification", "location_id", location.ID, "error", err)
		return
	}
	s.createNotification(ctx, operator.ID, "Overstay Penalty Collected",
		fmt.Sprintf("Booking %d: penalty of %d cents collected", rec.BookingID, amountCents),
		map[string]string{"type": "PENALTY_CHARGED", "overstay_record_id": fmt.Sprintf("%d", rec.ID)})
}

// escalate is the terminal automatic response to a failed charge: generate a
// bounded self-serve payment link, alert the renter and every administrator,
// and leave the record awaiting manual collection or the checkout webhook.
func (s *overstayService) escalate(
	ctx context.Context,
	rec *domain.OverstayRecord,
	booking *domain.Booking,
	renter *domain.Renter,
	location *domain.Location,
	amounts chargeAmounts,
	failureReason string,
	triggeredBy *int64,
) (*ChargeOutcome, error) {
	prev := rec.Status
	next, err := domain.Transition(rec.Status, domain.ActionEscalate)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	escalated := domain.ResolutionEscalatedCollection
	rec.Status = next
	rec.ResolutionType = &escalated
	rec.ChargeFailedAt = &now
	rec.FailureReason = failureReason
	if err := s.overstayRepo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.appendHistory(ctx, &domain.OverstayHistoryEntry{
		OverstayRecordID: rec.ID,
		PreviousStatus:   prev,
		NewStatus:        rec.Status,
		EventType:        domain.HistoryEventAutoEscalation,
		EventSource:      domain.EventSourceSystem,
		Description:      fmt.Sprintf("Charge failed, escalated to self-serve collection: %s", failureReason),
		Metadata:         map[string]string{"failure_reason": failureReason},
		CreatedBy:        triggeredBy,
	})

	outcome := &ChargeOutcome{Record: rec, Escalated: true, FailureReason: failureReason}

	session, err := s.gateway.CreateCheckoutSession(ctx, payments.CheckoutParams{
		AmountCents:        amounts.total,
		Currency:           s.cfg.Currency,
		Description:        fmt.Sprintf("Overstay penalty for booking %d", rec.BookingID),
		SuccessURL:         s.cfg.CheckoutSuccessURL,
		CancelURL:          s.cfg.CheckoutCancelURL,
		DestinationAccount: location.OperatorAccountRef,
		PlatformFeeCents:   amounts.fee,
		ExpiresAt:          now.Add(s.cfg.CheckoutLinkTTL),
		Metadata: map[string]string{
			"overstay_record_id": fmt.Sprintf("%d", rec.ID),
			"booking_id":         fmt.Sprintf("%d", rec.BookingID),
		},
	})
	if err != nil {
		// The record stays escalated for manual collection; the link can be
		// regenerated by a forced re-attempt.
		logger.Error("Failed to create escalation checkout session",
			"overstay_record_id", rec.ID, "error", err)
	} else {
		outcome.CheckoutURL = session.URL
		if err := s.emailSvc.SendPaymentLink(ctx, renter.Email, renter.Name, amounts.total, session.URL, failureReason); err != nil {
			logger.Warn("Failed to email payment link to renter", "overstay_record_id", rec.ID, "error", err)
		} else {
			s.appendHistory(ctx, &domain.OverstayHistoryEntry{
				OverstayRecordID: rec.ID,
				PreviousStatus:   rec.Status,
				NewStatus:        rec.Status,
				EventType:        domain.HistoryEventNotificationSent,
				EventSource:      domain.EventSourceSystem,
				Description:      "Self-serve payment link sent to renter",
				Metadata:         map[string]string{"checkout_session_id": session.ID},
			})
		}
		s.createNotification(ctx, renter.ID, "Payment Required",
			fmt.Sprintf("Your overstay penalty of %d cents could not be charged automatically. Please pay via the link sent to your email.", amounts.total),
			map[string]string{"type": "ESCALATION_PAYMENT_REQUIRED", "overstay_record_id": fmt.Sprintf("%d", rec.ID)})
	}

	s.alertAdmins(ctx, rec, renter, amounts.total, failureReason)
	return outcome, nil
}

func (s *overstayService) alertAdmins(ctx context.Context, rec *domain.OverstayRecord, renter *domain.Renter, amountCents int64, failureReason string) {
	admins, err := s.bookingRepo.ListAdmins(ctx)
	if err != nil {
		logger.Error("Failed to list admins for escalation summary", "overstay_record_id", rec.ID, "error", err)
		return
	}
	sent := 0
	for _, admin := range admins {
		if err := s.emailSvc.SendEscalationSummary(ctx, admin.Email, rec.ID, renter.Name,
			amountCents, rec.DaysOverdue, failureReason); err != nil {
			logger.Warn("Failed to send escalation summary", "admin_id", admin.ID, "error", err)
			continue
		}
		sent++
	}
	if sent > 0 {
		s.appendHistory(ctx, &domain.OverstayHistoryEntry{
			OverstayRecordID: rec.ID,
			PreviousStatus:   rec.Status,
			NewStatus:        rec.Status,
			EventType:        domain.HistoryEventNotificationSent,
			EventSource:      domain.EventSourceSystem,
			Description:      fmt.Sprintf("Escalation summary sent to %d administrator(s)", sent),
		})
	}
}

// ResolveFromCheckout finalizes an escalated record once the gateway reports
// the self-serve checkout completed. Already-resolved records are
// acknowledged without change so webhook redelivery is harmless.
func (s *overstayService) ResolveFromCheckout(ctx context.Context, recordID int64, paymentIntentID string) error {
	rec, err := s.overstayRepo.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	if rec.Status == domain.OverstayStatusResolved {
		return nil
	}
	if rec.Status != domain.OverstayStatusEscalated {
		return fmt.Errorf("%w: record %d is %s, checkout completion expects ESCALATED",
			domain.ErrStateConflict, rec.ID, rec.Status)
	}

	prev := rec.Status
	next, err := domain.Transition(rec.Status, domain.ActionResolve)
	if err != nil {
		return err
	}
	now := time.Now()
	paid := domain.ResolutionPaid
	rec.Status = next
	rec.ResolutionType = &paid
	rec.ResolvedAt = &now
	rec.ChargeSucceededAt = &now
	rec.FailureReason = ""
	if paymentIntentID != "" {
		rec.PaymentIntentID = &paymentIntentID
	}
	if err := s.overstayRepo.Update(ctx, rec); err != nil {
		return err
	}

	s.appendHistory(ctx, &domain.OverstayHistoryEntry{
		OverstayRecordID: rec.ID,
		PreviousStatus:   prev,
		NewStatus:        rec.Status,
		EventType:        domain.HistoryEventResolution,
		EventSource:      domain.EventSourcePaymentWebhook,
		Description:      "Self-serve checkout completed, penalty collected",
		Metadata:         map[string]string{"payment_intent_id": paymentIntentID},
	})

	booking, err := s.bookingRepo.GetByID(ctx, rec.BookingID)
	if err != nil {
		logger.Warn("Could not load booking after checkout resolution", "overstay_record_id", rec.ID, "error", err)
		return nil
	}
	location, err := s.bookingRepo.GetLocation(ctx, booking.LocationID)
	if err != nil {
		logger.Warn("Could not load location after checkout resolution", "overstay_record_id", rec.ID, "error", err)
		return nil
	}
	if amounts, aerr := s.computeChargeAmounts(rec, location); aerr == nil {
		s.recordBillingEntry(ctx, rec, amounts, "")
	}
	if renter, rerr := s.bookingRepo.GetRenter(ctx, booking.RenterID); rerr == nil {
		s.notifyChargeSucceeded(ctx, rec, booking, renter, location, *rec.FinalPenaltyCents)
	}
	return nil
}

func eventSourceFor(triggeredBy *int64) domain.HistoryEventSource {
	if triggeredBy != nil {
		return domain.EventSourceManager
	}
	return domain.EventSourceSystem
}
