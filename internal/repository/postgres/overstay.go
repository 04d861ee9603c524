package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"storhub-backend/internal/domain"
	"storhub-backend/internal/repository"
)

type overstayRepository struct {
	db *sql.DB
}

func NewOverstayRepository(db *sql.DB) repository.OverstayRepository {
	return &overstayRepository{db: db}
}

const overstayColumns = `id, booking_id, idempotency_key, end_date, days_overdue, grace_period_ends_at,
	daily_rate_cents, penalty_rate, calculated_penalty_cents, final_penalty_cents,
	status, resolution_type, failure_reason, notes,
	payment_intent_id, charge_id, refund_id, refunded_cents,
	detected_at, penalty_approved_at, charge_attempted_at, charge_succeeded_at, charge_failed_at, resolved_at,
	created_on, updated_on`

func (r *overstayRepository) Create(ctx context.Context, rec *domain.OverstayRecord) error {
	query := `INSERT INTO overstay_records (
			booking_id, idempotency_key, end_date, days_overdue, grace_period_ends_at,
			daily_rate_cents, penalty_rate, calculated_penalty_cents, status,
			notes, detected_at, created_on, updated_on
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		rec.BookingID, rec.IdempotencyKey, rec.EndDate, rec.DaysOverdue, rec.GracePeriodEndsAt,
		rec.DailyRateCents, rec.PenaltyRate, rec.CalculatedPenaltyCents, rec.Status,
		rec.Notes, rec.DetectedAt, now, now,
	).Scan(&rec.ID)
	if err != nil {
		// The unique index on idempotency_key is the backstop against two
		// overlapping detector runs inserting the same overdue period.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: overstay record already exists for key %s", domain.ErrStateConflict, rec.IdempotencyKey)
		}
		return err
	}
	rec.CreatedOn = now
	rec.UpdatedOn = now
	return nil
}

func (r *overstayRepository) GetByID(ctx context.Context, id int64) (*domain.OverstayRecord, error) {
	query := `SELECT ` + overstayColumns + ` FROM overstay_records WHERE id = $1`
	rec, err := scanOverstay(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: overstay record %d", domain.ErrNotFound, id)
	}
	return rec, err
}

func (r *overstayRepository) GetOpenByBooking(ctx context.Context, bookingID int64) (*domain.OverstayRecord, error) {
	statuses := make([]string, 0, len(domain.OpenOverstayStatuses))
	for _, s := range domain.OpenOverstayStatuses {
		statuses = append(statuses, string(s))
	}
	query := `SELECT ` + overstayColumns + ` FROM overstay_records
		WHERE booking_id = $1 AND status = ANY($2)
		ORDER BY detected_at DESC LIMIT 1`
	rec, err := scanOverstay(r.db.QueryRowContext(ctx, query, bookingID, pq.Array(statuses)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no open overstay record for booking %d", domain.ErrNotFound, bookingID)
	}
	return rec, err
}

func (r *overstayRepository) Update(ctx context.Context, rec *domain.OverstayRecord) error {
	query := `UPDATE overstay_records SET
			days_overdue=$1, grace_period_ends_at=$2, calculated_penalty_cents=$3, final_penalty_cents=$4,
			status=$5, resolution_type=$6, failure_reason=$7, notes=$8,
			payment_intent_id=$9, charge_id=$10, refund_id=$11, refunded_cents=$12,
			penalty_approved_at=$13, charge_attempted_at=$14, charge_succeeded_at=$15,
			charge_failed_at=$16, resolved_at=$17, updated_on=$18
		WHERE id=$19`
	_, err := r.db.ExecContext(ctx, query,
		rec.DaysOverdue, rec.GracePeriodEndsAt, rec.CalculatedPenaltyCents, rec.FinalPenaltyCents,
		rec.Status, rec.ResolutionType, rec.FailureReason, rec.Notes,
		rec.PaymentIntentID, rec.ChargeID, rec.RefundID, rec.RefundedCents,
		rec.PenaltyApprovedAt, rec.ChargeAttemptedAt, rec.ChargeSucceededAt,
		rec.ChargeFailedAt, rec.ResolvedAt, time.Now(), rec.ID,
	)
	return err
}

func (r *overstayRepository) List(ctx context.Context, status string, page, pageSize int32) ([]domain.OverstayRecord, int32, error) {
	offset := (page - 1) * pageSize
	query := `SELECT ` + overstayColumns + ` FROM overstay_records`
	args := []interface{}{}
	argIdx := 1
	if status != "" {
		query += fmt.Sprintf(" WHERE status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}

	var count int32
	countQuery := "SELECT count(*) FROM (" + query + ") as sub"
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(" ORDER BY detected_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []domain.OverstayRecord
	for rows.Next() {
		rec, err := scanOverstay(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *rec)
	}
	return records, count, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOverstay(row rowScanner) (*domain.OverstayRecord, error) {
	rec := &domain.OverstayRecord{}
	var resolution sql.NullString
	var failureReason, notes sql.NullString
	err := row.Scan(
		&rec.ID, &rec.BookingID, &rec.IdempotencyKey, &rec.EndDate, &rec.DaysOverdue, &rec.GracePeriodEndsAt,
		&rec.DailyRateCents, &rec.PenaltyRate, &rec.CalculatedPenaltyCents, &rec.FinalPenaltyCents,
		&rec.Status, &resolution, &failureReason, &notes,
		&rec.PaymentIntentID, &rec.ChargeID, &rec.RefundID, &rec.RefundedCents,
		&rec.DetectedAt, &rec.PenaltyApprovedAt, &rec.ChargeAttemptedAt, &rec.ChargeSucceededAt,
		&rec.ChargeFailedAt, &rec.ResolvedAt,
		&rec.CreatedOn, &rec.UpdatedOn,
	)
	if err != nil {
		return nil, err
	}
	if resolution.Valid {
		rt := domain.ResolutionType(resolution.String)
		rec.ResolutionType = &rt
	}
	rec.FailureReason = failureReason.String
	rec.Notes = notes.String
	return rec, nil
}
