package repository

import (
	"context"
	"errors"
	"time"

	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.StudentFeeAccount, error) {
	var account domain.StudentFeeAccount
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repo) FindStudent(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Student, error) {
	var student domain.Student
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&student).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &student, nil
}

func (r *repo) FindSchedule(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PaymentSchedule, error) {
	var schedule domain.PaymentSchedule
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &schedule, nil
}

func (r *repo) CompletedPaymentStats(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (int64, int64, error) {
	var row struct {
		Total int64
		Count int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count
		 FROM payments
		 WHERE student_fee_account_id = ? AND status = ?`,
		accountID, "completed",
	).Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Total, row.Count, nil
}

func (r *repo) UpdateBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, balance int64, status domain.AccountStatus) error {
	return db.WithContext(ctx).Exec(
		`UPDATE student_fee_accounts
		 SET current_balance = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		balance, status, time.Now().UTC(), id,
	).Error
}

func (r *repo) AddLateFee(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE student_fee_accounts
		 SET total_late_fees = total_late_fees + ?, updated_at = ?
		 WHERE id = ?`,
		amount, time.Now().UTC(), id,
	).Error
}

func (r *repo) AppendNote(ctx context.Context, db *gorm.DB, id snowflake.ID, note string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE student_fee_accounts
		 SET notes = CASE WHEN notes = '' THEN ? ELSE notes || ? END, updated_at = ?
		 WHERE id = ?`,
		note, "\n"+note, time.Now().UTC(), id,
	).Error
}

func (r *repo) UpdateStudentPaymentStatus(ctx context.Context, db *gorm.DB, studentID snowflake.ID, status domain.StudentPaymentStatus) error {
	return db.WithContext(ctx).Exec(
		`UPDATE students SET payment_status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), studentID,
	).Error
}
