package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"storhub-backend/internal/domain"
	"storhub-backend/internal/payments"
	"storhub-backend/internal/repository"
)

// Decision is the manager's resolution of a pending penalty. Exactly one
// concrete type per action so each action's required fields are enforced at
// compile time.
type Decision interface {
	action() domain.OverstayAction
}

// ApproveDecision approves the penalty, optionally reducing it. A nil
// FinalPenaltyCents approves the calculated amount.
type ApproveDecision struct {
	FinalPenaltyCents *int64
	Notes             string
}

// AdjustDecision approves the penalty at an explicit reduced amount.
type AdjustDecision struct {
	FinalPenaltyCents int64
	Notes             string
}

// WaiveDecision waives the penalty entirely.
type WaiveDecision struct {
	Reason string
	Notes  string
}

func (ApproveDecision) action() domain.OverstayAction { return domain.ActionApprovePenalty }
func (AdjustDecision) action() domain.OverstayAction  { return domain.ActionApprovePenalty }
func (WaiveDecision) action() domain.OverstayAction   { return domain.ActionWaivePenalty }

// DetectionSummary reports one detector pass.
type DetectionSummary struct {
	BookingsScanned int
	RecordsCreated  int
	RecordsUpdated  int
	Errors          int
}

// ChargeOutcome reports a charge attempt. Escalated outcomes carry the
// self-serve payment link when one could be generated.
type ChargeOutcome struct {
	Record        *domain.OverstayRecord
	Charged       bool
	Escalated     bool
	CheckoutURL   string
	FailureReason string
}

// RefundRequest reverses a succeeded penalty charge. A nil PartialAmountCents
// refunds the full remaining charged amount.
type RefundRequest struct {
	OverstayRecordID   int64
	Reason             string
	RefundedBy         int64
	PartialAmountCents *int64
}

type OverstayService interface {
	// DetectOverstays is the scheduled scan over all overdue bookings.
	DetectOverstays(ctx context.Context, today time.Time) (*DetectionSummary, error)
	GetOverstay(ctx context.Context, id int64) (*domain.OverstayRecord, []domain.OverstayHistoryEntry, error)
	ListOverstays(ctx context.Context, status string, page, pageSize int32) ([]domain.OverstayRecord, int32, error)
	ApplyDecision(ctx context.Context, recordID, managerID int64, decision Decision) (*domain.OverstayRecord, error)
	ChargePenalty(ctx context.Context, recordID int64, triggeredBy *int64) (*ChargeOutcome, error)
	RefundPenalty(ctx context.Context, req RefundRequest) (*domain.OverstayRecord, error)
	// ResolveFromCheckout is invoked by the payment webhook when the renter
	// completes the escalation checkout session.
	ResolveFromCheckout(ctx context.Context, recordID int64, paymentIntentID string) error
}

type EmailService interface {
	SendOverstayDetected(ctx context.Context, email, name, listingName string, daysOverdue int, penaltyCents int64, policyText string) error
	SendOverstayOperatorAlert(ctx context.Context, email, listingName string, bookingID int64, daysOverdue int, penaltyCents int64) error
	SendPenaltyCharged(ctx context.Context, email, name, listingName string, amountCents int64) error
	SendPaymentLink(ctx context.Context, email, name string, amountCents int64, link, failureReason string) error
	SendEscalationSummary(ctx context.Context, email string, recordID int64, renterName string, amountCents int64, daysOverdue int, failureReason string) error
	SendRefundIssued(ctx context.Context, email, name string, amountCents int64) error
}

// OverstayConfig carries the platform-default penalty settings and the charge
// accounting knobs, resolved from application config at startup.
type OverstayConfig struct {
	Defaults           domain.EffectivePenaltyConfig
	Currency           string
	ProcessingFeePct   decimal.Decimal
	ProcessingFeeFixed int64
	CheckoutLinkTTL    time.Duration
	CheckoutSuccessURL string
	CheckoutCancelURL  string
}

type overstayService struct {
	overstayRepo repository.OverstayRepository
	historyRepo  repository.HistoryRepository
	bookingRepo  repository.BookingRepository
	billingRepo  repository.BillingEntryRepository
	noteRepo     repository.NotificationRepository
	gateway      payments.Gateway
	emailSvc     EmailService
	cfg          OverstayConfig
}

func NewOverstayService(
	overstayRepo repository.OverstayRepository,
	historyRepo repository.HistoryRepository,
	bookingRepo repository.BookingRepository,
	billingRepo repository.BillingEntryRepository,
	noteRepo repository.NotificationRepository,
	gateway payments.Gateway,
	emailSvc EmailService,
	cfg OverstayConfig,
) OverstayService {
	return &overstayService{
		overstayRepo: overstayRepo,
		historyRepo:  historyRepo,
		bookingRepo:  bookingRepo,
		billingRepo:  billingRepo,
		noteRepo:     noteRepo,
		gateway:      gateway,
		emailSvc:     emailSvc,
		cfg:          cfg,
	}
}

func (s *overstayService) GetOverstay(ctx context.Context, id int64) (*domain.OverstayRecord, []domain.OverstayHistoryEntry, error) {
	rec, err := s.overstayRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.historyRepo.ListByRecord(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rec, history, nil
}

func (s *overstayService) ListOverstays(ctx context.Context, status string, page, pageSize int32) ([]domain.OverstayRecord, int32, error) {
	return s.overstayRepo.List(ctx, status, page, pageSize)
}
