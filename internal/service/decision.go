package service

import (
	"context"
	"fmt"
	"time"

	"storhub-backend/internal/domain"
)

const defaultWaiveReason = "Penalty waived by manager"

// ApplyDecision records a manager's approve, adjust, or waive decision. This
// is the single mandatory human gate: no code path charges a penalty without
// a record passing through here first.
func (s *overstayService) ApplyDecision(ctx context.Context, recordID, managerID int64, decision Decision) (*domain.OverstayRecord, error) {
	rec, err := s.overstayRepo.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.OverstayStatusPendingReview && rec.Status != domain.OverstayStatusChargeFailed {
		return nil, fmt.Errorf("%w: record %d is %s, decisions require PENDING_REVIEW or CHARGE_FAILED",
			domain.ErrStateConflict, rec.ID, rec.Status)
	}

	switch d := decision.(type) {
	case ApproveDecision:
		final := rec.CalculatedPenaltyCents
		if d.FinalPenaltyCents != nil {
			final = *d.FinalPenaltyCents
		}
		return s.approvePenalty(ctx, rec, managerID, final, d.Notes, "approved")
	case AdjustDecision:
		return s.approvePenalty(ctx, rec, managerID, d.FinalPenaltyCents, d.Notes, "adjusted")
	case WaiveDecision:
		return s.waivePenalty(ctx, rec, managerID, d.Reason, d.Notes)
	default:
		return nil, fmt.Errorf("%w: unknown decision type %T", domain.ErrValidation, decision)
	}
}

func (s *overstayService) approvePenalty(ctx context.Context, rec *domain.OverstayRecord, managerID, finalCents int64, notes, verb string) (*domain.OverstayRecord, error) {
	if finalCents < 0 {
		return nil, fmt.Errorf("%w: final penalty must not be negative", domain.ErrValidation)
	}
	// Managers may reduce the penalty, never increase it.
	if finalCents > rec.CalculatedPenaltyCents {
		return nil, fmt.Errorf("%w: final penalty %d exceeds calculated penalty %d",
			domain.ErrValidation, finalCents, rec.CalculatedPenaltyCents)
	}

	prev := rec.Status
	next, err := domain.Transition(rec.Status, domain.ActionApprovePenalty)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec.Status = next
	rec.FinalPenaltyCents = &finalCents
	rec.PenaltyApprovedAt = &now
	if notes != "" {
		rec.Notes = appendNote(rec.Notes, notes)
	}
	if err := s.overstayRepo.Update(ctx, rec); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, &domain.OverstayHistoryEntry{
		OverstayRecordID: rec.ID,
		PreviousStatus:   prev,
		NewStatus:        rec.Status,
		EventType:        domain.HistoryEventPenaltyApproved,
		EventSource:      domain.EventSourceManager,
		Description:      fmt.Sprintf("Penalty %s at %d cents (calculated %d)", verb, finalCents, rec.CalculatedPenaltyCents),
		Metadata: map[string]string{
			"final_penalty_cents":      fmt.Sprintf("%d", finalCents),
			"calculated_penalty_cents": fmt.Sprintf("%d", rec.CalculatedPenaltyCents),
		},
		CreatedBy: &managerID,
	})
	return rec, nil
}

func (s *overstayService) waivePenalty(ctx context.Context, rec *domain.OverstayRecord, managerID int64, reason, notes string) (*domain.OverstayRecord, error) {
	if reason == "" {
		reason = defaultWaiveReason
	}

	prev := rec.Status
	next, err := domain.Transition(rec.Status, domain.ActionWaivePenalty)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	zero := int64(0)
	waived := domain.ResolutionWaived
	rec.Status = next
	rec.FinalPenaltyCents = &zero
	rec.ResolutionType = &waived
	rec.ResolvedAt = &now
	rec.Notes = appendNote(rec.Notes, reason)
	if notes != "" {
		rec.Notes = appendNote(rec.Notes, notes)
	}
	if err := s.overstayRepo.Update(ctx, rec); err != nil {
		return nil, err
	}

	s.appendHistory(ctx, &domain.OverstayHistoryEntry{
		OverstayRecordID: rec.ID,
		PreviousStatus:   prev,
		NewStatus:        rec.Status,
		EventType:        domain.HistoryEventPenaltyWaived,
		EventSource:      domain.EventSourceManager,
		Description:      fmt.Sprintf("Penalty waived: %s", reason),
		Metadata:         map[string]string{"reason": reason},
		CreatedBy:        &managerID,
	})
	return rec, nil
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
