package repository

import (
	"context"
	"errors"
	"time"

	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert relies on the (gateway, external_id) unique constraint. A retried
// delivery reports inserted=false instead of erroring.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, txn *domain.Transaction) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_gateway_transactions (
			id, gateway, external_id, event_type, webhook_payload,
			received_at, signature_valid, status, amount, processed,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (gateway, external_id) DO NOTHING`,
		txn.ID,
		txn.Gateway,
		txn.ExternalID,
		txn.EventType,
		txn.WebhookPayload,
		txn.ReceivedAt,
		txn.SignatureValid,
		txn.Status,
		txn.Amount,
		txn.Processed,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, gateway, externalID string) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := db.WithContext(ctx).
		Where("gateway = ? AND external_id = ?", gateway, externalID).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repo) RefreshPayload(ctx context.Context, db *gorm.DB, id snowflake.ID, payload []byte, receivedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_gateway_transactions
		 SET webhook_payload = ?, received_at = ?, updated_at = ?
		 WHERE id = ?`,
		payload, receivedAt, receivedAt, id,
	).Error
}

func (r *repo) UpdateOutcome(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_gateway_transactions
		 SET status = ?, amount = ?, payment_method_type = ?,
		     student_fee_account_id = ?, payment_id = ?, paid_at = ?,
		     failure_code = ?, failure_message = ?, updated_at = ?
		 WHERE id = ?`,
		txn.Status,
		txn.Amount,
		txn.PaymentMethodType,
		txn.StudentFeeAccountID,
		txn.PaymentID,
		txn.PaidAt,
		txn.FailureCode,
		txn.FailureMessage,
		time.Now().UTC(),
		txn.ID,
	).Error
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_gateway_transactions
		 SET processed = ?, processed_at = ?, updated_at = ?
		 WHERE id = ?`,
		true, processedAt, processedAt, id,
	).Error
}

func (r *repo) ListUnprocessed(ctx context.Context, db *gorm.DB, gateway string, limit int) ([]*domain.Transaction, error) {
	var txns []*domain.Transaction
	stmt := db.WithContext(ctx).
		Where("processed = ?", false).
		Order("received_at asc")
	if gateway != "" {
		stmt = stmt.Where("gateway = ?", gateway)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
