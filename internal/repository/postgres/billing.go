package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storhub-backend/internal/domain"
	"storhub-backend/internal/repository"
)

type billingEntryRepository struct {
	db *sql.DB
}

func NewBillingEntryRepository(db *sql.DB) repository.BillingEntryRepository {
	return &billingEntryRepository{db: db}
}

func (r *billingEntryRepository) Create(ctx context.Context, entry *domain.BillingEntry) error {
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}
	query := `INSERT INTO billing_entries (
			booking_id, overstay_record_id, amount_cents, base_amount_cents, tax_amount_cents,
			service_fee_cents, manager_revenue_cents, refunded_cents, external_charge_ref,
			external_refund_ref, status, metadata, created_on, updated_on
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`
	now := time.Now()
	return r.db.QueryRowContext(ctx, query,
		entry.BookingID, entry.OverstayRecordID, entry.AmountCents, entry.BaseAmountCents,
		entry.TaxAmountCents, entry.ServiceFeeCents, entry.ManagerRevenueCents, entry.RefundedCents,
		entry.ExternalChargeRef, entry.ExternalRefundRef, entry.Status, meta, now, now,
	).Scan(&entry.ID)
}

func (r *billingEntryRepository) GetByOverstayRecord(ctx context.Context, recordID int64) (*domain.BillingEntry, error) {
	query := `SELECT id, booking_id, overstay_record_id, amount_cents, base_amount_cents, tax_amount_cents,
			service_fee_cents, manager_revenue_cents, refunded_cents, external_charge_ref,
			external_refund_ref, status, metadata, created_on, updated_on
		FROM billing_entries WHERE overstay_record_id = $1`
	entry := &domain.BillingEntry{}
	var meta []byte
	err := r.db.QueryRowContext(ctx, query, recordID).Scan(
		&entry.ID, &entry.BookingID, &entry.OverstayRecordID, &entry.AmountCents, &entry.BaseAmountCents,
		&entry.TaxAmountCents, &entry.ServiceFeeCents, &entry.ManagerRevenueCents, &entry.RefundedCents,
		&entry.ExternalChargeRef, &entry.ExternalRefundRef, &entry.Status, &meta,
		&entry.CreatedOn, &entry.UpdatedOn,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: billing entry for overstay record %d", domain.ErrNotFound, recordID)
	}
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &entry.Metadata); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

func (r *billingEntryRepository) Update(ctx context.Context, entry *domain.BillingEntry) error {
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}
	query := `UPDATE billing_entries SET
			refunded_cents=$1, external_refund_ref=$2, status=$3, metadata=$4, updated_on=$5
		WHERE id=$6`
	_, err = r.db.ExecContext(ctx, query,
		entry.RefundedCents, entry.ExternalRefundRef, entry.Status, meta, time.Now(), entry.ID)
	return err
}
