package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storhub-backend/internal/domain"
	"storhub-backend/internal/logger"
)

// DetectOverstays scans every overdue booking, creating or refreshing one
// open overstay record per booking per overdue period. Safe to run any number
// of times per day: days overdue and the penalty are recomputed from dates,
// never incremented, and the per-period idempotency key blocks duplicates.
func (s *overstayService) DetectOverstays(ctx context.Context, today time.Time) (*DetectionSummary, error) {
	bookings, err := s.bookingRepo.ListOverdue(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue bookings: %w", err)
	}

	summary := &DetectionSummary{}
	for i := range bookings {
		created, err := s.scanBooking(ctx, today, &bookings[i])
		if err != nil {
			logger.Error("Overstay scan failed for booking",
				"booking_id", bookings[i].ID,
				"error", err)
			summary.Errors++
			continue
		}
		summary.BookingsScanned++
		if created {
			summary.RecordsCreated++
		} else {
			summary.RecordsUpdated++
		}
	}

	logger.Info("Overstay detection completed",
		"scanned", summary.BookingsScanned,
		"created", summary.RecordsCreated,
		"updated", summary.RecordsUpdated,
		"errors", summary.Errors)
	return summary, nil
}

func (s *overstayService) scanBooking(ctx context.Context, today time.Time, booking *domain.Booking) (created bool, err error) {
	daysOverdue := domain.WholeDaysBetween(booking.EndDate, today)
	if daysOverdue <= 0 {
		return false, nil
	}

	listing, err := s.bookingRepo.GetListing(ctx, booking.ListingID)
	if err != nil {
		return false, err
	}
	location, err := s.bookingRepo.GetLocation(ctx, booking.LocationID)
	if err != nil {
		return false, err
	}

	cfg := domain.ResolvePenaltyConfig(s.cfg.Defaults, location.Overstay, listing.Overstay)
	graceEnds := cfg.GracePeriodEnd(booking.EndDate)
	inGrace := today.Before(graceEnds)
	penaltyDays := cfg.PenaltyDays(daysOverdue)
	calculated := cfg.PenaltyCents(listing.DailyRateCents, penaltyDays)

	rec, err := s.overstayRepo.GetOpenByBooking(ctx, booking.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return false, err
		}
		return true, s.createOverstay(ctx, booking, listing, cfg, daysOverdue, graceEnds, inGrace, calculated)
	}
	return false, s.refreshOverstay(ctx, rec, daysOverdue, calculated, inGrace)
}

func (s *overstayService) createOverstay(
	ctx context.Context,
	booking *domain.Booking,
	listing *domain.Listing,
	cfg domain.EffectivePenaltyConfig,
	daysOverdue int,
	graceEnds time.Time,
	inGrace bool,
	calculated int64,
) error {
	// New records pass through DETECTED and land in grace or review via the
	// transition table like every other status move.
	action := domain.ActionAdvanceReview
	if inGrace {
		action = domain.ActionEnterGrace
	}
	status, err := domain.Transition(domain.OverstayStatusDetected, action)
	if err != nil {
		return err
	}

	rec := &domain.OverstayRecord{
		BookingID:              booking.ID,
		IdempotencyKey:         domain.OverstayIdempotencyKey(booking.ID, booking.EndDate),
		EndDate:                booking.EndDate,
		DaysOverdue:            daysOverdue,
		GracePeriodEndsAt:      graceEnds,
		DailyRateCents:         listing.DailyRateCents,
		PenaltyRate:            cfg.PenaltyRate.String(),
		CalculatedPenaltyCents: calculated,
		Status:                 status,
		DetectedAt:             time.Now(),
	}
	if err := s.overstayRepo.Create(ctx, rec); err != nil {
		// A concurrent detector run beat us to the insert. Already recorded.
		if errors.Is(err, domain.ErrStateConflict) {
			logger.Warn("Overstay record already existed during scan",
				"booking_id", booking.ID, "idempotency_key", rec.IdempotencyKey)
			return nil
		}
		return err
	}

	s.appendHistory(ctx, &domain.OverstayHistoryEntry{
		OverstayRecordID: rec.ID,
		PreviousStatus:   domain.OverstayStatusDetected,
		NewStatus:        rec.Status,
		EventType:        domain.HistoryEventStatusChange,
		EventSource:      domain.EventSourceCron,
		Description:      fmt.Sprintf("Overstay detected: %d day(s) past end date", daysOverdue),
		Metadata: map[string]string{
			"days_overdue":             fmt.Sprintf("%d", daysOverdue),
			"calculated_penalty_cents": fmt.Sprintf("%d", calculated),
			"grace_period_days":        fmt.Sprintf("%d", cfg.GracePeriodDays),
		},
	})
	s.notifyDetection(ctx, rec, booking, listing, cfg)
	return nil
}

func (s *overstayService) refreshOverstay(ctx context.Context, rec *domain.OverstayRecord, daysOverdue int, calculated int64, inGrace bool) error {
	rec.DaysOverdue = daysOverdue
	// A record the manager already acted on keeps its reviewed amount; only
	// pre-review statuses track the accruing penalty.
	if rec.Status != domain.OverstayStatusChargeFailed {
		rec.CalculatedPenaltyCents = calculated
	}

	if rec.Status == domain.OverstayStatusGracePeriod && !inGrace {
		prev := rec.Status
		next, err := domain.Transition(rec.Status, domain.ActionAdvanceReview)
		if err != nil {
			return err
		}
		rec.Status = next
		if err := s.overstayRepo.Update(ctx, rec); err != nil {
			return err
		}
		s.appendHistory(ctx, &domain.OverstayHistoryEntry{
			OverstayRecordID: rec.ID,
			PreviousStatus:   prev,
			NewStatus:        rec.Status,
			EventType:        domain.HistoryEventStatusChange,
			EventSource:      domain.EventSourceCron,
			Description:      "Grace period expired, penalty pending manager review",
			Metadata: map[string]string{
				"days_overdue":             fmt.Sprintf("%d", daysOverdue),
				"calculated_penalty_cents": fmt.Sprintf("%d", calculated),
			},
		})
		return nil
	}

	return s.overstayRepo.Update(ctx, rec)
}

func (s *overstayService) notifyDetection(ctx context.Context, rec *domain.OverstayRecord, booking *domain.Booking, listing *domain.Listing, cfg domain.EffectivePenaltyConfig) {
	renter, err := s.bookingRepo.GetRenter(ctx, booking.RenterID)
	if err != nil {
		logger.Warn("Could not load renter for overstay notification", "booking_id", booking.ID, "error", err)
		return
	}

	if err := s.emailSvc.SendOverstayDetected(ctx, renter.Email, renter.Name, listing.Name,
		rec.DaysOverdue, rec.CalculatedPenaltyCents, cfg.PolicyText); err != nil {
		logger.Warn("Failed to send overstay email to renter", "overstay_record_id", rec.ID, "error", err)
	}
	s.createNotification(ctx, renter.ID, "Storage Unit Overdue",
		fmt.Sprintf("Your rental of %s is %d day(s) past its end date", listing.Name, rec.DaysOverdue),
		map[string]string{"type": "OVERSTAY_DETECTED", "overstay_record_id": fmt.Sprintf("%d", rec.ID)})

	location, err := s.bookingRepo.GetLocation(ctx, booking.LocationID)
	if err != nil {
		logger.Warn("Could not load location for operator notification", "booking_id", booking.ID, "error", err)
		return
	}
	operator, err := s.bookingRepo.GetOperator(ctx, location.OperatorID)
	if err != nil {
		logger.Warn("Could not load operator for overstay notification", "location_id", location.ID, "error", err)
		return
	}
	if err := s.emailSvc.SendOverstayOperatorAlert(ctx, operator.Email, listing.Name,
		booking.ID, rec.DaysOverdue, rec.CalculatedPenaltyCents); err != nil {
		logger.Warn("Failed to send overstay alert to operator", "overstay_record_id", rec.ID, "error", err)
	}
	s.createNotification(ctx, operator.ID, "Overstay Detected",
		fmt.Sprintf("Booking %d for %s is %d day(s) overdue", booking.ID, listing.Name, rec.DaysOverdue),
		map[string]string{"type": "OVERSTAY_DETECTED", "overstay_record_id": fmt.Sprintf("%d", rec.ID)})
}

// appendHistory writes an audit row. Audit failures are logged loudly but do
// not unwind the transition that already committed.
func (s *overstayService) appendHistory(ctx context.Context, entry *domain.OverstayHistoryEntry) {
	if err := s.historyRepo.Append(ctx, entry); err != nil {
		logger.Error("Failed to append overstay history",
			"overstay_record_id", entry.OverstayRecordID,
			"event_type", entry.EventType,
			"error", err)
	}
}

func (s *overstayService) createNotification(ctx context.Context, userID int64, title, message string, attrs map[string]string) {
	note := &domain.Notification{
		UserID:     userID,
		Title:      title,
		Message:    message,
		Attributes: attrs,
	}
	if err := s.noteRepo.Create(ctx, note); err != nil {
		logger.Warn("Failed to create in-app notification", "user_id", userID, "error", err)
	}
}
