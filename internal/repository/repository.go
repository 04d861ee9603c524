package repository

import (
	"context"
	"time"

	"storhub-backend/internal/domain"
)

type OverstayRepository interface {
	Create(ctx context.Context, rec *domain.OverstayRecord) error
	GetByID(ctx context.Context, id int64) (*domain.OverstayRecord, error)
	// GetOpenByBooking returns the single open record for a booking, or a
	// domain.ErrNotFound wrapped error when none exists.
	GetOpenByBooking(ctx context.Context, bookingID int64) (*domain.OverstayRecord, error)
	Update(ctx context.Context, rec *domain.OverstayRecord) error
	List(ctx context.Context, status string, page, pageSize int32) ([]domain.OverstayRecord, int32, error)
}

type HistoryRepository interface {
	Append(ctx context.Context, entry *domain.OverstayHistoryEntry) error
	ListByRecord(ctx context.Context, recordID int64) ([]domain.OverstayHistoryEntry, error)
}

// BookingRepository reads the booking/listing store. The penalty engine
// consumes these facts and never writes them.
type BookingRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	// ListOverdue returns confirmed or active, non-cancelled bookings whose
	// end date is strictly before the given day and which are not flagged
	// mid-checkout.
	ListOverdue(ctx context.Context, before time.Time) ([]domain.Booking, error)
	GetListing(ctx context.Context, id int64) (*domain.Listing, error)
	GetLocation(ctx context.Context, id int64) (*domain.Location, error)
	GetRenter(ctx context.Context, id int64) (*domain.Renter, error)
	ListAdmins(ctx context.Context) ([]domain.Operator, error)
	GetOperator(ctx context.Context, id int64) (*domain.Operator, error)
}

type BillingEntryRepository interface {
	Create(ctx context.Context, entry *domain.BillingEntry) error
	GetByOverstayRecord(ctx context.Context, recordID int64) (*domain.BillingEntry, error)
	Update(ctx context.Context, entry *domain.BillingEntry) error
}

type NotificationRepository interface {
	Create(ctx context.Context, note *domain.Notification) error
	List(ctx context.Context, userID int64, limit, offset int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, id, userID int64) error
}
