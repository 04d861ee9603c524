package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"storhub-backend/internal/domain"
	"storhub-backend/internal/repository"
)

type historyRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) repository.HistoryRepository {
	return &historyRepository{db: db}
}

// Append inserts an audit row. There is no update or delete path on this
// table anywhere in the codebase.
func (r *historyRepository) Append(ctx context.Context, entry *domain.OverstayHistoryEntry) error {
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}
	query := `INSERT INTO overstay_history (
			overstay_record_id, previous_status, new_status, event_type, event_source,
			description, metadata, created_by, created_on
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_on`
	return r.db.QueryRowContext(ctx, query,
		entry.OverstayRecordID, entry.PreviousStatus, entry.NewStatus, entry.EventType, entry.EventSource,
		entry.Description, meta, entry.CreatedBy, time.Now(),
	).Scan(&entry.ID, &entry.CreatedOn)
}

func (r *historyRepository) ListByRecord(ctx context.Context, recordID int64) ([]domain.OverstayHistoryEntry, error) {
	query := `SELECT id, overstay_record_id, previous_status, new_status, event_type, event_source,
			description, metadata, created_by, created_on
		FROM overstay_history WHERE overstay_record_id = $1 ORDER BY created_on ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.OverstayHistoryEntry
	for rows.Next() {
		var e domain.OverstayHistoryEntry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.OverstayRecordID, &e.PreviousStatus, &e.NewStatus, &e.EventType,
			&e.EventSource, &e.Description, &meta, &e.CreatedBy, &e.CreatedOn); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
