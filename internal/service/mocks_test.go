package service_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"storhub-backend/internal/domain"
	"storhub-backend/internal/payments"
)

// MockOverstayRepo
type MockOverstayRepo struct {
	mock.Mock
}

func (m *MockOverstayRepo) Create(ctx context.Context, rec *domain.OverstayRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}
func (m *MockOverstayRepo) GetByID(ctx context.Context, id int64) (*domain.OverstayRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OverstayRecord), args.Error(1)
}
func (m *MockOverstayRepo) GetOpenByBooking(ctx context.Context, bookingID int64) (*domain.OverstayRecord, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OverstayRecord), args.Error(1)
}
func (m *MockOverstayRepo) Update(ctx context.Context, rec *domain.OverstayRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}
func (m *MockOverstayRepo) List(ctx context.Context, status string, page, pageSize int32) ([]domain.OverstayRecord, int32, error) {
	args := m.Called(ctx, status, page, pageSize)
	return args.Get(0).([]domain.OverstayRecord), args.Get(1).(int32), args.Error(2)
}

// MockHistoryRepo
type MockHistoryRepo struct {
	mock.Mock
}

func (m *MockHistoryRepo) Append(ctx context.Context, entry *domain.OverstayHistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
func (m *MockHistoryRepo) ListByRecord(ctx context.Context, recordID int64) ([]domain.OverstayHistoryEntry, error) {
	args := m.Called(ctx, recordID)
	return args.Get(0).([]domain.OverstayHistoryEntry), args.Error(1)
}

// MockBookingRepo
type MockBookingRepo struct {
	mock.Mock
}

func (m *MockBookingRepo) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}
func (m *MockBookingRepo) ListOverdue(ctx context.Context, before time.Time) ([]domain.Booking, error) {
	args := m.Called(ctx, before)
	return args.Get(0).([]domain.Booking), args.Error(1)
}
func (m *MockBookingRepo) GetListing(ctx context.Context, id int64) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}
func (m *MockBookingRepo) GetLocation(ctx context.Context, id int64) (*domain.Location, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Location), args.Error(1)
}
func (m *MockBookingRepo) GetRenter(ctx context.Context, id int64) (*domain.Renter, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Renter), args.Error(1)
}
func (m *MockBookingRepo) ListAdmins(ctx context.Context) ([]domain.Operator, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Operator), args.Error(1)
}
func (m *MockBookingRepo) GetOperator(ctx context.Context, id int64) (*domain.Operator, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operator), args.Error(1)
}

// MockBillingRepo
type MockBillingRepo struct {
	mock.Mock
}

func (m *MockBillingRepo) Create(ctx context.Context, entry *domain.BillingEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
func (m *MockBillingRepo) GetByOverstayRecord(ctx context.Context, recordID int64) (*domain.BillingEntry, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BillingEntry), args.Error(1)
}
func (m *MockBillingRepo) Update(ctx context.Context, entry *domain.BillingEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockNotificationRepo
type MockNotificationRepo struct {
	mock.Mock
}

func (m *MockNotificationRepo) Create(ctx context.Context, note *domain.Notification) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}
func (m *MockNotificationRepo) List(ctx context.Context, userID int64, limit, offset int32) ([]domain.Notification, int32, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]domain.Notification), args.Get(1).(int32), args.Error(2)
}
func (m *MockNotificationRepo) MarkAsRead(ctx context.Context, id, userID int64) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

// MockGateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOffSessionCharge(ctx context.Context, params payments.ChargeParams) (*payments.ChargeResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.ChargeResult), args.Error(1)
}
func (m *MockGateway) CreateCheckoutSession(ctx context.Context, params payments.CheckoutParams) (*payments.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.CheckoutSession), args.Error(1)
}
func (m *MockGateway) Refund(ctx context.Context, chargeRef string, amountCents int64, reason string) (string, error) {
	args := m.Called(ctx, chargeRef, amountCents, reason)
	return args.String(0), args.Error(1)
}
func (m *MockGateway) GetFeeBreakdown(ctx context.Context, chargeRef string) (*payments.FeeBreakdown, error) {
	args := m.Called(ctx, chargeRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.FeeBreakdown), args.Error(1)
}

// MockEmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendOverstayDetected(ctx context.Context, email, name, listingName string, daysOverdue int, penaltyCents int64, policyText string) error {
	args := m.Called(ctx, email, name, listingName, daysOverdue, penaltyCents, policyText)
	return args.Error(0)
}
func (m *MockEmailService) SendOverstayOperatorAlert(ctx context.Context, email, listingName string, bookingID int64, daysOverdue int, penaltyCents int64) error {
	args := m.Called(ctx, email, listingName, bookingID, daysOverdue, penaltyCents)
	return args.Error(0)
}
func (m *MockEmailService) SendPenaltyCharged(ctx context.Context, email, name, listingName string, amountCents int64) error {
	args := m.Called(ctx, email, name, listingName, amountCents)
	return args.Error(0)
}
func (m *MockEmailService) SendPaymentLink(ctx context.Context, email, name string, amountCents int64, link, failureReason string) error {
	args := m.Called(ctx, email, name, amountCents, link, failureReason)
	return args.Error(0)
}
func (m *MockEmailService) SendEscalationSummary(ctx context.Context, email string, recordID int64, renterName string, amountCents int64, daysOverdue int, failureReason string) error {
	args := m.Called(ctx, email, recordID, renterName, amountCents, daysOverdue, failureReason)
	return args.Error(0)
}
func (m *MockEmailService) SendRefundIssued(ctx context.Context, email, name string, amountCents int64) error {
	args := m.Called(ctx, email, name, amountCents)
	return args.Error(0)
}
