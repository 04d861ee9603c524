package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"storhub-backend/internal/domain"
	"storhub-backend/internal/repository"
)

// bookingRepository is a read-only view over the booking/listing tables owned
// by the marketplace side of the schema.
type bookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) repository.BookingRepository {
	return &bookingRepository{db: db}
}

const bookingColumns = `id, listing_id, location_id, renter_id, start_date, end_date, status,
	checkout_in_progress, gateway_customer_ref, gateway_payment_method_ref`

func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: booking %d", domain.ErrNotFound, id)
	}
	return b, err
}

func (r *bookingRepository) ListOverdue(ctx context.Context, before time.Time) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE status IN ('CONFIRMED', 'ACTIVE')
		  AND end_date < $1
		  AND checkout_in_progress = FALSE
		ORDER BY end_date ASC`
	rows, err := r.db.QueryContext(ctx, query, before.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *bookingRepository) GetListing(ctx context.Context, id int64) (*domain.Listing, error) {
	query := `SELECT id, location_id, name, daily_rate_cents,
			overstay_grace_period_days, overstay_penalty_rate, overstay_max_penalty_days, overstay_policy_text
		FROM listings WHERE id = $1`
	l := &domain.Listing{}
	var grace, maxDays sql.NullInt64
	var rate, policy sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.LocationID, &l.Name, &l.DailyRateCents, &grace, &rate, &maxDays, &policy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: listing %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	l.Overstay, err = overrideFromColumns(grace, rate, maxDays, policy)
	return l, err
}

func (r *bookingRepository) GetLocation(ctx context.Context, id int64) (*domain.Location, error) {
	query := `SELECT id, name, operator_id, operator_account_ref, tax_rate_percent,
			overstay_grace_period_days, overstay_penalty_rate, overstay_max_penalty_days, overstay_policy_text
		FROM locations WHERE id = $1`
	loc := &domain.Location{}
	var accountRef sql.NullString
	var grace, maxDays sql.NullInt64
	var rate, policy sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&loc.ID, &loc.Name, &loc.OperatorID, &accountRef, &loc.TaxRatePercent,
		&grace, &rate, &maxDays, &policy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: location %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	loc.OperatorAccountRef = accountRef.String
	loc.Overstay, err = overrideFromColumns(grace, rate, maxDays, policy)
	return loc, err
}

func (r *bookingRepository) GetRenter(ctx context.Context, id int64) (*domain.Renter, error) {
	query := `SELECT id, name, email, gateway_customer_ref, gateway_payment_method_ref
		FROM users WHERE id = $1`
	u := &domain.Renter{}
	var custRef, pmRef sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &custRef, &pmRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	u.GatewayCustomerRef = custRef.String
	u.GatewayPaymentMethodRef = pmRef.String
	return u, nil
}

func (r *bookingRepository) ListAdmins(ctx context.Context) ([]domain.Operator, error) {
	query := `SELECT id, name, email, is_admin FROM users WHERE is_admin = TRUE`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []domain.Operator
	for rows.Next() {
		var op domain.Operator
		if err := rows.Scan(&op.ID, &op.Name, &op.Email, &op.IsAdmin); err != nil {
			return nil, err
		}
		admins = append(admins, op)
	}
	return admins, rows.Err()
}

func (r *bookingRepository) GetOperator(ctx context.Context, id int64) (*domain.Operator, error) {
	query := `SELECT id, name, email, is_admin FROM users WHERE id = $1`
	op := &domain.Operator{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&op.ID, &op.Name, &op.Email, &op.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return op, nil
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	b := &domain.Booking{}
	var custRef, pmRef sql.NullString
	err := row.Scan(&b.ID, &b.ListingID, &b.LocationID, &b.RenterID, &b.StartDate, &b.EndDate,
		&b.Status, &b.CheckoutInProgress, &custRef, &pmRef)
	if err != nil {
		return nil, err
	}
	b.GatewayCustomerRef = custRef.String
	b.GatewayPaymentMethodRef = pmRef.String
	return b, nil
}

// overrideFromColumns builds a tier override from nullable columns. All-null
// rows yield a nil override so resolution falls straight through.
func overrideFromColumns(grace sql.NullInt64, rate sql.NullString, maxDays sql.NullInt64, policy sql.NullString) (*domain.PenaltyConfigOverride, error) {
	if !grace.Valid && !rate.Valid && !maxDays.Valid && !policy.Valid {
		return nil, nil
	}
	o := &domain.PenaltyConfigOverride{}
	if grace.Valid {
		v := int(grace.Int64)
		o.GracePeriodDays = &v
	}
	if rate.Valid {
		d, err := decimal.NewFromString(rate.String)
		if err != nil {
			return nil, fmt.Errorf("invalid overstay penalty rate %q: %w", rate.String, err)
		}
		o.PenaltyRate = &d
	}
	if maxDays.Valid {
		v := int(maxDays.Int64)
		o.MaxPenaltyDays = &v
	}
	if policy.Valid {
		v := policy.String
		o.PolicyText = &v
	}
	return o, nil
}
