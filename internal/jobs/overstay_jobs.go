package jobs

import (
	"context"
	"time"

	"storhub-backend/internal/logger"
)

// DetectOverstays scans bookings past their end date and creates or refreshes
// overstay records. Safe to run more than once per day.
func (jr *JobRunner) DetectOverstays() {
	jr.runWithRecovery("DetectOverstays", func() {
		ctx := context.Background()

		summary, err := jr.overstay.DetectOverstays(ctx, time.Now().UTC())
		if err != nil {
			logger.Error("Overstay detection failed", "error", err)
			return
		}

		logger.Info("Overstay detection finished",
			"bookings_scanned", summary.BookingsScanned,
			"records_created", summary.RecordsCreated,
			"records_updated", summary.RecordsUpdated,
			"errors", summary.Errors)
	})
}
