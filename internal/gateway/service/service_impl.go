package service

import (
	"context"
	"net/http"
	"strings"

	activitydomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/activity/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/clock"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/config"
	feedomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/adapters"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/observability/metrics"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/ornumber"
	paymentdomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/payment/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/pkg/money"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Payments   paymentdomain.Repository
	Accounts   feedomain.Repository
	Reconciler feedomain.Service
	Activity   activitydomain.Service
	Allocator  ornumber.Allocator
	Adapters   *adapters.Registry
	Policy     *config.FeePolicyHolder
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	payments   paymentdomain.Repository
	accounts   feedomain.Repository
	reconciler feedomain.Service
	activity   activitydomain.Service
	allocator  ornumber.Allocator
	adapters   *adapters.Registry
	policy     *config.FeePolicyHolder
	metrics    *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("gateway.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		payments:   p.Payments,
		accounts:   p.Accounts,
		reconciler: p.Reconciler,
		activity:   p.Activity,
		allocator:  p.Allocator,
		adapters:   p.Adapters,
		policy:     p.Policy,
		metrics:    p.Metrics,
	}
}

// Ingest applies one webhook delivery. The gateway retries on timeouts and
// 5xx, so everything after the signature check answers success: a replay of
// a processed event returns ErrEventAlreadyProcessed (mapped to 200 by the
// handler) and a dispatch failure leaves the stored transaction
// unprocessed for the reconciliation sweep.
func (s *Service) Ingest(ctx context.Context, gateway string, payload []byte, headers http.Header) error {
	gateway = strings.ToLower(strings.TrimSpace(gateway))
	adapter, ok := s.adapters.Get(gateway)
	if !ok {
		return domain.ErrUnknownGateway
	}

	if err := adapter.Verify(payload, headers); err != nil {
		if err == domain.ErrGatewayNotConfigured {
			return err
		}
		s.metrics.RecordGatewayEvent(ctx, gateway, "unknown", "signature_rejected")
		return domain.ErrInvalidSignature
	}

	event, err := adapter.Parse(payload)
	if err != nil {
		// authenticated but malformed, nothing to retry
		s.log.Warn("unparseable gateway payload",
			zap.String("gateway", gateway),
			zap.Error(err),
		)
		s.metrics.RecordGatewayEvent(ctx, gateway, "unknown", "unparseable")
		return nil
	}

	now := s.clock.Now()
	txn := &domain.Transaction{
		ID:             s.genID.Generate(),
		Gateway:        gateway,
		ExternalID:     event.ExternalID,
		EventType:      event.Type,
		WebhookPayload: datatypes.JSON(payload),
		ReceivedAt:     now,
		SignatureValid: true,
		Status:         domain.TxnStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	inserted, err := s.repo.Insert(ctx, s.db, txn)
	if err != nil {
		s.log.Error("failed to store gateway transaction",
			zap.String("gateway", gateway),
			zap.String("external_id", event.ExternalID),
			zap.Error(err),
		)
		return nil
	}

	stored := txn
	if !inserted {
		stored, err = s.repo.Find(ctx, s.db, gateway, event.ExternalID)
		if err != nil || stored == nil {
			s.log.Error("failed to load stored gateway transaction",
				zap.String("external_id", event.ExternalID),
				zap.Error(err),
			)
			return nil
		}
		if stored.Processed {
			s.metrics.RecordGatewayEvent(ctx, gateway, event.Type, "duplicate")
			return domain.ErrEventAlreadyProcessed
		}
		// keep the latest delivery for debugging
		if err := s.repo.RefreshPayload(ctx, s.db, stored.ID, payload, now); err != nil {
			s.log.Warn("failed to refresh webhook payload", zap.Error(err))
		}
	}

	if err := s.dispatch(ctx, stored, event); err != nil {
		s.log.Error("gateway event dispatch failed",
			zap.String("gateway", gateway),
			zap.String("external_id", event.ExternalID),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		s.metrics.RecordGatewayEvent(ctx, gateway, event.Type, "dispatch_failed")
		return nil
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, s.clock.Now()); err != nil {
		s.log.Error("failed to mark gateway transaction processed", zap.Error(err))
		return nil
	}

	s.metrics.RecordGatewayEvent(ctx, gateway, event.Type, "processed")
	return nil
}

func (s *Service) dispatch(ctx context.Context, txn *domain.Transaction, event *domain.Event) error {
	switch event.Type {
	case domain.EventCheckoutPaid, domain.EventPaymentPaid:
		return s.applyPaid(ctx, txn, event)
	case domain.EventPaymentFailed:
		return s.applyFailed(ctx, txn, event)
	case domain.EventRefunded:
		return s.applyRefund(ctx, txn, event)
	default:
		s.log.Info("unhandled gateway event type",
			zap.String("gateway", txn.Gateway),
			zap.String("event_type", event.Type),
		)
		return nil
	}
}

// applyPaid creates the ledger payment for a paid gateway event and
// reconciles the account. Orphaned events (missing or unknown fee account
// metadata) are finalized without a payment so they stop retrying.
func (s *Service) applyPaid(ctx context.Context, txn *domain.Transaction, event *domain.Event) error {
	if event.GatewayPaymentID == "" || event.Amount <= 0 {
		s.log.Info("no paid payment in gateway event",
			zap.String("external_id", event.ExternalID),
		)
		return nil
	}

	// a second event type can reference the same underlying payment
	existing, err := s.payments.FindByGatewayReference(ctx, s.db, event.GatewayPaymentID)
	if err != nil {
		return err
	}
	if existing != nil {
		txn.Status = domain.TxnStatusPaid
		txn.Amount = event.Amount
		paymentID := existing.ID
		txn.PaymentID = &paymentID
		txn.StudentFeeAccountID = &existing.StudentFeeAccountID
		return s.repo.UpdateOutcome(ctx, s.db, txn)
	}

	if event.FeeAccountID == nil {
		s.log.Error("gateway event missing fee account metadata",
			zap.String("external_id", event.ExternalID),
		)
		txn.Status = domain.TxnStatusPaid
		txn.Amount = event.Amount
		return s.repo.UpdateOutcome(ctx, s.db, txn)
	}

	account, err := s.accounts.Find(ctx, s.db, *event.FeeAccountID)
	if err != nil {
		return err
	}
	if account == nil {
		s.log.Error("gateway event references unknown fee account",
			zap.String("external_id", event.ExternalID),
			zap.String("fee_account_id", event.FeeAccountID.String()),
		)
		txn.Status = domain.TxnStatusPaid
		txn.Amount = event.Amount
		return s.repo.UpdateOutcome(ctx, s.db, txn)
	}

	method := s.methodForSource(event.SourceType)
	orNumber := s.allocateORNumber(ctx, account.SchoolID)

	now := s.clock.Now()
	paidAt := event.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}

	gatewayRef := event.GatewayPaymentID
	txnID := txn.ID
	payment := &paymentdomain.Payment{
		ID:                   s.genID.Generate(),
		StudentFeeAccountID:  account.ID,
		PaymentScheduleID:    event.ScheduleID,
		Amount:               event.Amount,
		GrossAmount:          event.Amount,
		GatewayFee:           event.Fee,
		NetAmount:            event.NetAmount,
		PaymentDate:          paidAt,
		PaymentMethod:        method,
		ReferenceNumber:      event.ReferenceNumber,
		ORNumber:             orNumber,
		GatewayReference:     &gatewayRef,
		GatewayTransactionID: &txnID,
		Status:               paymentdomain.StatusCompleted,
		Notes:                "Gateway payment via " + string(method),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.payments.InsertWithHistory(ctx, tx, payment, paymentdomain.SourceGatewayWebhook); err != nil {
			return err
		}
		txn.Status = domain.TxnStatusPaid
		txn.Amount = event.Amount
		methodType := string(method)
		txn.PaymentMethodType = &methodType
		accountID := account.ID
		txn.StudentFeeAccountID = &accountID
		paymentID := payment.ID
		txn.PaymentID = &paymentID
		txn.PaidAt = &paidAt
		return s.repo.UpdateOutcome(ctx, tx, txn)
	})
	if err != nil {
		return err
	}

	if _, err := s.reconciler.Reconcile(ctx, account.ID); err != nil {
		return err
	}

	s.writePaidActivity(ctx, account.ID, payment)
	s.metrics.RecordPayment(ctx, string(method), string(payment.Status))
	return nil
}

func (s *Service) applyFailed(ctx context.Context, txn *domain.Transaction, event *domain.Event) error {
	txn.Status = domain.TxnStatusFailed
	txn.Amount = event.Amount
	if event.FailureCode != "" {
		code := event.FailureCode
		txn.FailureCode = &code
	}
	if event.FailureMessage != "" {
		message := event.FailureMessage
		txn.FailureMessage = &message
	}
	txn.StudentFeeAccountID = event.FeeAccountID

	if err := s.repo.UpdateOutcome(ctx, s.db, txn); err != nil {
		return err
	}

	if event.FeeAccountID != nil {
		message := event.FailureMessage
		if message == "" {
			message = "Unknown error"
		}
		entry := activitydomain.Entry{
			AccountID:   *event.FeeAccountID,
			Action:      activitydomain.ActionPaymentFailed,
			Description: "Online payment failed: " + message,
			NewValue: map[string]any{
				"external_id":   event.ExternalID,
				"error_code":    event.FailureCode,
				"error_message": event.FailureMessage,
			},
		}
		if err := s.activity.Record(ctx, entry); err != nil {
			s.log.Warn("failed to write gateway failure activity", zap.Error(err))
		}
	}
	return nil
}

// applyRefund closes the loop on a gateway refund. Refunds never touch the
// balance formula; they live in fee_refunds and the audit trail only.
func (s *Service) applyRefund(ctx context.Context, txn *domain.Transaction, event *domain.Event) error {
	if event.RefundPaymentRef == "" {
		s.log.Warn("refund event without payment reference",
			zap.String("external_id", event.ExternalID),
		)
		return nil
	}

	payment, err := s.payments.FindByGatewayReference(ctx, s.db, event.RefundPaymentRef)
	if err != nil {
		return err
	}
	if payment == nil {
		s.log.Warn("refund for unknown gateway payment",
			zap.String("gateway_payment_id", event.RefundPaymentRef),
		)
		txn.Status = domain.TxnStatusRefunded
		txn.Amount = event.Amount
		return s.repo.UpdateOutcome(ctx, s.db, txn)
	}

	refund, err := s.payments.FindRefundByPayment(ctx, s.db, payment.ID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if refund == nil {
			externalID := event.ExternalID
			record := &paymentdomain.FeeRefund{
				ID:                  s.genID.Generate(),
				PaymentID:           payment.ID,
				StudentFeeAccountID: payment.StudentFeeAccountID,
				Amount:              event.Amount,
				Status:              paymentdomain.RefundProcessed,
				GatewayRefundID:     &externalID,
				ProcessedAt:         &now,
				CreatedAt:           now,
				UpdatedAt:           now,
			}
			if err := s.payments.InsertRefund(ctx, tx, record); err != nil {
				return err
			}
		} else {
			if err := s.payments.MarkRefundProcessed(ctx, tx, refund.ID, event.ExternalID, now); err != nil {
				return err
			}
		}

		txn.Status = domain.TxnStatusRefunded
		txn.Amount = event.Amount
		accountID := payment.StudentFeeAccountID
		txn.StudentFeeAccountID = &accountID
		paymentID := payment.ID
		txn.PaymentID = &paymentID
		return s.repo.UpdateOutcome(ctx, tx, txn)
	})
	if err != nil {
		return err
	}

	paymentID := payment.ID
	entry := activitydomain.Entry{
		AccountID:        payment.StudentFeeAccountID,
		Action:           activitydomain.ActionRefundProcessed,
		Description:      "Refund of " + money.Format(event.Amount) + " processed",
		RelatedPaymentID: &paymentID,
		NewValue: map[string]any{
			"refund_amount":     event.Amount,
			"gateway_refund_id": event.ExternalID,
		},
	}
	if err := s.activity.Record(ctx, entry); err != nil {
		s.log.Warn("failed to write refund activity", zap.Error(err))
	}
	return nil
}

// methodForSource maps the gateway's payment-source type onto a ledger
// payment method. Policy overrides win over the built-in table.
func (s *Service) methodForSource(source string) paymentdomain.Method {
	source = strings.ToLower(strings.TrimSpace(source))
	if s.policy != nil {
		if override, ok := s.policy.Get().SourceMethodOverrides[source]; ok {
			method := paymentdomain.Method(override)
			if method.Valid() {
				return method
			}
		}
	}

	switch source {
	case "gcash":
		return paymentdomain.MethodGCash
	case "grab_pay":
		return paymentdomain.MethodGrabPay
	case "paymaya", "maya":
		return paymentdomain.MethodMaya
	case "card":
		return paymentdomain.MethodCreditCard
	case "dob", "dob_ubp":
		return paymentdomain.MethodBankTransfer
	default:
		return paymentdomain.MethodOtherEwallet
	}
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

func (s *Service) writePaidActivity(ctx context.Context, accountID snowflake.ID, payment *paymentdomain.Payment) {
	newValue := map[string]any{
		"payment_id":     payment.ID.String(),
		"amount":         payment.Amount,
		"payment_method": string(payment.PaymentMethod),
	}
	if payment.ORNumber != nil {
		newValue["or_number"] = *payment.ORNumber
	}

	paymentID := payment.ID
	entry := activitydomain.Entry{
		AccountID:        accountID,
		Action:           activitydomain.ActionPaymentRecorded,
		Description:      "Online payment of " + money.Format(payment.Amount) + " received via " + string(payment.PaymentMethod),
		RelatedPaymentID: &paymentID,
		NewValue:         newValue,
	}
	if err := s.activity.Record(ctx, entry); err != nil {
		s.log.Warn("failed to write gateway payment activity", zap.Error(err))
	}
}
