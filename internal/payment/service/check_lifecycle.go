package service

import (
	"context"
	"fmt"

	activitydomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/activity/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/payment/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/pkg/money"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ResolveCheck settles a pending check one way or the other. Cleared and
// bounced are terminal; a resolved check rejects any further transition.
func (s *Service) ResolveCheck(ctx context.Context, paymentID snowflake.ID, target domain.CheckStatus, bounceFee int64) error {
	if target != domain.CheckCleared && target != domain.CheckBounced {
		return domain.ErrInvalidCheckStatus
	}

	payment, err := s.repo.Find(ctx, s.db, paymentID)
	if err != nil {
		return err
	}
	if payment == nil {
		return domain.ErrPaymentNotFound
	}
	if !payment.IsCheck() {
		return domain.ErrNotACheck
	}
	if payment.CheckStatus == nil || *payment.CheckStatus != domain.CheckPending {
		return domain.ErrCheckAlreadyResolved
	}

	switch target {
	case domain.CheckCleared:
		err = s.clearCheck(ctx, payment)
	case domain.CheckBounced:
		err = s.bounceCheck(ctx, payment, bounceFee)
	}
	if err != nil {
		return err
	}

	s.metrics.RecordCheckTransition(ctx, string(target))
	return nil
}

func (s *Service) clearCheck(ctx context.Context, payment *domain.Payment) error {
	cleared := domain.CheckCleared
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.UpdateStatus(ctx, tx, payment.ID, domain.StatusCompleted, &cleared, domain.SourceCheckCleared)
	})
	if err != nil {
		return err
	}

	// The cleared check now counts toward the balance.
	if _, err := s.reconciler.Reconcile(ctx, payment.StudentFeeAccountID); err != nil {
		return err
	}

	s.writeCheckActivity(ctx, payment, activitydomain.ActionPaymentRecorded,
		fmt.Sprintf("Check %s for %s cleared", checkLabel(payment), money.Format(payment.Amount)),
		domain.CheckCleared, 0)
	return nil
}

// bounceCheck fails the payment without touching the balance. A pending
// check never contributed to it, so there is nothing to reconcile.
func (s *Service) bounceCheck(ctx context.Context, payment *domain.Payment, bounceFee int64) error {
	if bounceFee <= 0 {
		bounceFee = s.policy.Get().BounceFeeCentavos()
	}

	bounced := domain.CheckBounced
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateStatus(ctx, tx, payment.ID, domain.StatusFailed, &bounced, domain.SourceCheckBounced); err != nil {
			return err
		}
		if bounceFee > 0 {
			if err := s.accounts.AddLateFee(ctx, tx, payment.StudentFeeAccountID, bounceFee); err != nil {
				return err
			}
		}
		note := fmt.Sprintf("[%s] Check %s bounced - consider restricting check payments for this account.",
			s.clock.Now().Format("2006-01-02"), checkLabel(payment))
		return s.accounts.AppendNote(ctx, tx, payment.StudentFeeAccountID, note)
	})
	if err != nil {
		return err
	}

	s.writeCheckActivity(ctx, payment, activitydomain.ActionPaymentFailed,
		fmt.Sprintf("Check %s for %s bounced", checkLabel(payment), money.Format(payment.Amount)),
		domain.CheckBounced, bounceFee)
	return nil
}

func (s *Service) writeCheckActivity(ctx context.Context, payment *domain.Payment, action, description string, target domain.CheckStatus, bounceFee int64) {
	newValue := map[string]any{
		"check_status": string(target),
	}
	if bounceFee > 0 {
		newValue["bounce_fee"] = bounceFee
	}

	paymentID := payment.ID
	entry := activitydomain.Entry{
		AccountID:        payment.StudentFeeAccountID,
		Action:           action,
		Description:      description,
		RelatedPaymentID: &paymentID,
		OldValue:         map[string]any{"check_status": string(domain.CheckPending)},
		NewValue:         newValue,
	}
	if err := s.activity.Record(ctx, entry); err != nil {
		s.log.Warn("failed to write check activity", zap.Error(err))
	}
}

func checkLabel(payment *domain.Payment) string {
	if payment.CheckNumber != nil && *payment.CheckNumber != "" {
		return "#" + *payment.CheckNumber
	}
	return payment.ID.String()
}
