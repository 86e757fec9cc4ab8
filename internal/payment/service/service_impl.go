package service

import (
	"context"
	"fmt"
	"strings"

	activitydomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/activity/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/clock"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/config"
	feedomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/observability/metrics"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/ornumber"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/payment/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/pkg/money"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Accounts   feedomain.Repository
	Reconciler feedomain.Service
	Activity   activitydomain.Service
	Allocator  ornumber.Allocator
	Policy     *config.FeePolicyHolder
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	accounts   feedomain.Repository
	reconciler feedomain.Service
	activity   activitydomain.Service
	allocator  ornumber.Allocator
	policy     *config.FeePolicyHolder
	metrics    *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		accounts:   p.Accounts,
		reconciler: p.Reconciler,
		activity:   p.Activity,
		allocator:  p.Allocator,
		policy:     p.Policy,
		metrics:    p.Metrics,
	}
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Payment, error) {
	payment, err := s.repo.Find(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrPaymentNotFound
	}
	return payment, nil
}

func (s *Service) History(ctx context.Context, paymentID snowflake.ID) ([]*domain.StatusHistory, error) {
	payment, err := s.repo.Find(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrPaymentNotFound
	}
	return s.repo.History(ctx, s.db, paymentID)
}

// Record persists a manual cashier entry. Checks start pending and touch
// the balance only once they clear; everything else completes immediately
// and reconciles the account synchronously.
func (s *Service) Record(ctx context.Context, input domain.RecordInput) (*domain.RecordResult, error) {
	if err := validateRecordInput(input); err != nil {
		return nil, err
	}

	account, err := s.accounts.Find(ctx, s.db, input.StudentFeeAccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, feedomain.ErrAccountNotFound
	}
	if account.Status == feedomain.StatusSettled {
		return nil, feedomain.ErrAccountSettled
	}

	if input.PaymentScheduleID != nil {
		schedule, err := s.accounts.FindSchedule(ctx, s.db, *input.PaymentScheduleID)
		if err != nil {
			return nil, err
		}
		if schedule == nil || schedule.StudentFeeAccountID != account.ID {
			return nil, feedomain.ErrScheduleNotFound
		}
	}

	var warnings []string
	isOverpayment := input.Amount > account.CurrentBalance
	if isOverpayment {
		credit := input.Amount - account.CurrentBalance
		warnings = append(warnings, fmt.Sprintf(
			"Payment exceeds outstanding balance; %s will be carried as credit", money.Format(credit)))
	}

	// Best effort. A sequence failure degrades to a null receipt number
	// instead of rejecting the payment.
	orNumber := s.allocateORNumber(ctx, account.SchoolID)

	status := domain.StatusCompleted
	var checkStatus *domain.CheckStatus
	if input.PaymentMethod == domain.MethodCheck {
		status = domain.StatusPending
		pending := domain.CheckPending
		checkStatus = &pending
	}

	now := s.clock.Now()
	payment := &domain.Payment{
		ID:                  s.genID.Generate(),
		StudentFeeAccountID: account.ID,
		PaymentScheduleID:   input.PaymentScheduleID,
		Amount:              input.Amount,
		GrossAmount:         input.Amount,
		NetAmount:           input.Amount,
		PaymentDate:         input.PaymentDate,
		PaymentMethod:       input.PaymentMethod,
		ReferenceNumber:     strings.TrimSpace(input.ReferenceNumber),
		ORNumber:            orNumber,
		Status:              status,
		CheckStatus:         checkStatus,
		Notes:               strings.TrimSpace(input.Notes),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if input.PaymentMethod == domain.MethodCheck {
		checkNumber := strings.TrimSpace(input.CheckNumber)
		checkBank := strings.TrimSpace(input.CheckBank)
		payment.CheckNumber = &checkNumber
		payment.CheckBank = &checkBank
		payment.CheckDate = input.CheckDate
	}
	if depositor := strings.TrimSpace(input.DepositorName); depositor != "" {
		payment.DepositorName = &depositor
	}
	if proof := strings.TrimSpace(input.ProofURL); proof != "" {
		payment.ProofURL = &proof
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.InsertWithHistory(ctx, tx, payment, domain.SourceManualRecording)
	})
	if err != nil {
		return nil, err
	}

	if status == domain.StatusCompleted {
		if _, err := s.reconciler.Reconcile(ctx, account.ID); err != nil {
			return nil, err
		}
	}

	s.writeRecordedActivity(ctx, account.ID, payment, isOverpayment)
	s.metrics.RecordPayment(ctx, string(payment.PaymentMethod), string(payment.Status))

	return &domain.RecordResult{Payment: payment, Warnings: warnings}, nil
}

func validateRecordInput(input domain.RecordInput) error {
	if input.StudentFeeAccountID == 0 {
		return feedomain.ErrAccountNotFound
	}
	if input.Amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if !input.PaymentMethod.Valid() {
		return domain.ErrInvalidMethod
	}
	if input.PaymentDate.IsZero() {
		return domain.ErrInvalidPaymentDate
	}
	if input.PaymentMethod == domain.MethodCheck {
		if strings.TrimSpace(input.CheckNumber) == "" || strings.TrimSpace(input.CheckBank) == "" {
			return domain.ErrCheckDetailsRequired
		}
	}
	return nil
}

func (s *Service) allocateORNumber(ctx context.Context, schoolID snowflake.ID) *string {
	number, err := s.allocator.Allocate(ctx, s.db, schoolID)
	if err != nil {
		s.log.Warn("or number allocation failed",
			zap.String("school_id", schoolID.String()),
			zap.Error(err),
		)
		s.metrics.RecordORAllocationFailure(ctx)
		return nil
	}
	return &number
}

func (s *Service) writeRecordedActivity(ctx context.Context, accountID snowflake.ID, payment *domain.Payment, isOverpayment bool) {
	newValue := map[string]any{
		"payment_id":     payment.ID.String(),
		"amount":         payment.Amount,
		"payment_method": string(payment.PaymentMethod),
		"status":         string(payment.Status),
		"is_overpayment": isOverpayment,
	}
	if payment.ORNumber != nil {
		newValue["or_number"] = *payment.ORNumber
	}

	paymentID := payment.ID
	entry := activitydomain.Entry{
		AccountID:        accountID,
		Action:           activitydomain.ActionPaymentRecorded,
		Description:      fmt.Sprintf("Payment of %s recorded via %s", money.Format(payment.Amount), payment.PaymentMethod),
		RelatedPaymentID: &paymentID,
		NewValue:         newValue,
	}
	if err := s.activity.Record(ctx, entry); err != nil {
		s.log.Warn("failed to write payment activity", zap.Error(err))
	}
}
