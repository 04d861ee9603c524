package postgres

import (
	"database/sql"

	"storhub-backend/internal/repository"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.OverstayRepository
	repository.HistoryRepository
	repository.BookingRepository
	repository.BillingEntryRepository
	repository.NotificationRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                     db,
		OverstayRepository:     NewOverstayRepository(db),
		HistoryRepository:      NewHistoryRepository(db),
		BookingRepository:      NewBookingRepository(db),
		BillingEntryRepository: NewBillingEntryRepository(db),
		NotificationRepository: NewNotificationRepository(db),
	}
}
