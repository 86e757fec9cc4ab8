package repository

import (
	"context"
	"errors"
	"time"

	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/payment/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct {
	genID *snowflake.Node
}

func Provide(genID *snowflake.Node) domain.Repository {
	return &repo{genID: genID}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repo) FindByGatewayReference(ctx context.Context, db *gorm.DB, reference string) (*domain.Payment, error) {
	if reference == "" {
		return nil, nil
	}
	var payment domain.Payment
	err := db.WithContext(ctx).
		Where("gateway_reference = ?", reference).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repo) InsertWithHistory(ctx context.Context, db *gorm.DB, payment *domain.Payment, source string) error {
	if err := db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, student_fee_account_id, payment_schedule_id,
			amount, gross_amount, gateway_fee, net_amount,
			payment_date, payment_method, reference_number, or_number,
			gateway_reference, gateway_transaction_id, status,
			check_number, check_bank, check_date, check_status,
			depositor_name, proof_url, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.StudentFeeAccountID,
		payment.PaymentScheduleID,
		payment.Amount,
		payment.GrossAmount,
		payment.GatewayFee,
		payment.NetAmount,
		payment.PaymentDate,
		payment.PaymentMethod,
		payment.ReferenceNumber,
		payment.ORNumber,
		payment.GatewayReference,
		payment.GatewayTransactionID,
		payment.Status,
		payment.CheckNumber,
		payment.CheckBank,
		payment.CheckDate,
		payment.CheckStatus,
		payment.DepositorName,
		payment.ProofURL,
		payment.Notes,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error; err != nil {
		return err
	}

	return r.appendHistory(ctx, db, payment.ID, payment.Status, source, payment.CreatedAt)
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, checkStatus *domain.CheckStatus, source string) error {
	now := time.Now().UTC()

	stmt := db.WithContext(ctx)
	var err error
	if checkStatus != nil {
		err = stmt.Exec(
			`UPDATE payments SET status = ?, check_status = ?, updated_at = ? WHERE id = ?`,
			status, *checkStatus, now, id,
		).Error
	} else {
		err = stmt.Exec(
			`UPDATE payments SET status = ?, updated_at = ? WHERE id = ?`,
			status, now, id,
		).Error
	}
	if err != nil {
		return err
	}

	return r.appendHistory(ctx, db, id, status, source, now)
}

func (r *repo) appendHistory(ctx context.Context, db *gorm.DB, paymentID snowflake.ID, status domain.Status, source string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_status_history (id, payment_id, status, source, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.genID.Generate(), paymentID, status, source, at,
	).Error
}

func (r *repo) History(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) ([]*domain.StatusHistory, error) {
	var entries []*domain.StatusHistory
	err := db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("recorded_at asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) InsertRefund(ctx context.Context, db *gorm.DB, refund *domain.FeeRefund) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO fee_refunds (
			id, payment_id, student_fee_account_id, amount, reason,
			status, gateway_refund_id, processed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		refund.ID,
		refund.PaymentID,
		refund.StudentFeeAccountID,
		refund.Amount,
		refund.Reason,
		refund.Status,
		refund.GatewayRefundID,
		refund.ProcessedAt,
		refund.CreatedAt,
		refund.UpdatedAt,
	).Error
}

func (r *repo) FindRefundByPayment(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (*domain.FeeRefund, error) {
	var refund domain.FeeRefund
	err := db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at desc").
		First(&refund).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

func (r *repo) MarkRefundProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, gatewayRefundID string, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE fee_refunds
		 SET status = ?, gateway_refund_id = ?, processed_at = ?, updated_at = ?
		 WHERE id = ?`,
		domain.RefundProcessed, gatewayRefundID, processedAt, processedAt, id,
	).Error
}
