package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type AccountStatus string

const (
	StatusActive      AccountStatus = "active"
	StatusPartialPaid AccountStatus = "partial_paid"
	StatusSettled     AccountStatus = "settled"
	// StatusOnHold is an administrative freeze. Held accounts reject new
	// gateway checkouts but still accept manual payments.
	StatusOnHold AccountStatus = "on_hold"
)

type StudentPaymentStatus string

const (
	StudentEnrolled    StudentPaymentStatus = "enrolled"
	StudentPartialPaid StudentPaymentStatus = "partial_paid"
	StudentFullyPaid   StudentPaymentStatus = "fully_paid"
)

type School struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	ORPrefix  string       `json:"or_prefix" gorm:"column:or_prefix;type:text;not null"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (School) TableName() string { return "schools" }

type Student struct {
	ID            snowflake.ID         `json:"id" gorm:"primaryKey"`
	SchoolID      snowflake.ID         `json:"school_id" gorm:"not null;index"`
	FirstName     string               `json:"first_name" gorm:"type:text;not null"`
	LastName      string               `json:"last_name" gorm:"type:text;not null"`
	PaymentStatus StudentPaymentStatus `json:"payment_status" gorm:"type:text;not null"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func (Student) TableName() string { return "students" }

// StudentFeeAccount is the per-student ledger head. All amounts are
// centavos. Balance and status are written only by the reconciler.
type StudentFeeAccount struct {
	ID             snowflake.ID  `json:"id" gorm:"primaryKey"`
	StudentID      snowflake.ID  `json:"student_id" gorm:"not null;index"`
	SchoolID       snowflake.ID  `json:"school_id" gorm:"not null;index"`
	SchoolYear     string        `json:"school_year" gorm:"type:text"`
	TotalFees      int64         `json:"total_fees" gorm:"not null"`
	CurrentBalance int64         `json:"current_balance" gorm:"not null"`
	TotalLateFees  int64         `json:"total_late_fees" gorm:"not null"`
	Status         AccountStatus `json:"status" gorm:"type:text;not null"`
	Notes          string        `json:"notes" gorm:"type:text"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (StudentFeeAccount) TableName() string { return "student_fee_accounts" }

// PaymentSchedule is an installment owned by the fee-assignment subsystem.
// This core only reads it to price scheduled checkouts.
type PaymentSchedule struct {
	ID                  snowflake.ID `json:"id" gorm:"primaryKey"`
	StudentFeeAccountID snowflake.ID `json:"student_fee_account_id" gorm:"not null;index"`
	DueDate             time.Time    `json:"due_date" gorm:"not null"`
	AmountDue           int64        `json:"amount_due" gorm:"not null"`
	AmountPaid          int64        `json:"amount_paid" gorm:"not null"`
	Status              string       `json:"status" gorm:"type:text;not null"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

func (PaymentSchedule) TableName() string { return "payment_schedules" }

// Outstanding is how much of the installment is still unpaid.
func (p PaymentSchedule) Outstanding() int64 {
	remaining := p.AmountDue - p.AmountPaid
	if remaining < 0 {
		return 0
	}
	return remaining
}

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*StudentFeeAccount, error)
	FindStudent(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Student, error)
	FindSchedule(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentSchedule, error)
	// CompletedPaymentStats returns the sum and count of completed payments
	// applied to the account.
	CompletedPaymentStats(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (total int64, count int64, err error)
	UpdateBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, balance int64, status AccountStatus) error
	AddLateFee(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64) error
	AppendNote(ctx context.Context, db *gorm.DB, id snowflake.ID, note string) error
	UpdateStudentPaymentStatus(ctx context.Context, db *gorm.DB, studentID snowflake.ID, status StudentPaymentStatus) error
}

type Service interface {
	Get(ctx context.Context, id snowflake.ID) (*StudentFeeAccount, error)
	// Reconcile recomputes the balance from completed payments and applies
	// the account status decision rule. Safe to call repeatedly.
	Reconcile(ctx context.Context, id snowflake.ID) (AccountStatus, error)
}

var (
	ErrAccountNotFound  = errors.New("fee_account_not_found")
	ErrScheduleNotFound = errors.New("payment_schedule_not_found")
	ErrAccountSettled   = errors.New("fee_account_settled")
	ErrAccountOnHold    = errors.New("fee_account_on_hold")
)
