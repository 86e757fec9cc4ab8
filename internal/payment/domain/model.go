package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Method string

const (
	MethodCash             Method = "cash"
	MethodCheck            Method = "check"
	MethodBankTransfer     Method = "bank_transfer"
	MethodBankDeposit      Method = "bank_deposit"
	MethodInternalTransfer Method = "internal_transfer"
	MethodGCash            Method = "gcash"
	MethodGrabPay          Method = "grabpay"
	MethodMaya             Method = "maya"
	MethodCreditCard       Method = "credit_card"
	MethodOtherEwallet     Method = "other_ewallet"
)

var validMethods = map[Method]struct{}{
	MethodCash:             {},
	MethodCheck:            {},
	MethodBankTransfer:     {},
	MethodBankDeposit:      {},
	MethodInternalTransfer: {},
	MethodGCash:            {},
	MethodGrabPay:          {},
	MethodMaya:             {},
	MethodCreditCard:       {},
	MethodOtherEwallet:     {},
}

func (m Method) Valid() bool {
	_, ok := validMethods[m]
	return ok
}

type CheckStatus string

const (
	CheckPending CheckStatus = "pending"
	CheckCleared CheckStatus = "cleared"
	CheckBounced CheckStatus = "bounced"
)

// Status history sources identify which path moved the payment.
const (
	SourceManualRecording = "manual_recording"
	SourceCheckCleared    = "check_cleared"
	SourceCheckBounced    = "check_bounced"
	SourceGatewayWebhook  = "paymongo_webhook"
)

// Payment is one payment attempt against a fee account. Amounts are
// centavos. A payment is never deleted; after creation only status and
// check_status change, and each change appends a history row.
type Payment struct {
	ID                   snowflake.ID  `json:"id" gorm:"primaryKey"`
	StudentFeeAccountID  snowflake.ID  `json:"student_fee_account_id" gorm:"not null;index"`
	PaymentScheduleID    *snowflake.ID `json:"payment_schedule_id"`
	Amount               int64         `json:"amount" gorm:"not null"`
	GrossAmount          int64         `json:"gross_amount" gorm:"not null"`
	GatewayFee           int64         `json:"gateway_fee" gorm:"not null"`
	NetAmount            int64         `json:"net_amount" gorm:"not null"`
	PaymentDate          time.Time     `json:"payment_date" gorm:"not null"`
	PaymentMethod        Method        `json:"payment_method" gorm:"type:text;not null"`
	ReferenceNumber      string        `json:"reference_number" gorm:"type:text"`
	ORNumber             *string       `json:"or_number" gorm:"column:or_number"`
	GatewayReference     *string       `json:"gateway_reference"`
	GatewayTransactionID *snowflake.ID `json:"gateway_transaction_id"`
	Status               Status        `json:"status" gorm:"type:text;not null"`
	CheckNumber          *string       `json:"check_number"`
	CheckBank            *string       `json:"check_bank"`
	CheckDate            *time.Time    `json:"check_date"`
	CheckStatus          *CheckStatus  `json:"check_status" gorm:"type:text"`
	DepositorName        *string       `json:"depositor_name"`
	ProofURL             *string       `json:"proof_url"`
	Notes                string        `json:"notes" gorm:"type:text"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// IsCheck reports whether the payment rides the check lifecycle.
func (p Payment) IsCheck() bool { return p.PaymentMethod == MethodCheck }

// StatusHistory is an append-only child row. The latest row always matches
// the payment's current status.
type StatusHistory struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	PaymentID  snowflake.ID `json:"payment_id" gorm:"not null;index"`
	Status     Status       `json:"status" gorm:"type:text;not null"`
	Source     string       `json:"source" gorm:"type:text;not null"`
	RecordedAt time.Time    `json:"recorded_at" gorm:"not null"`
}

func (StatusHistory) TableName() string { return "payment_status_history" }

type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundProcessed RefundStatus = "processed"
)

// FeeRefund tracks money returned through the gateway. Refunds never flow
// through the balance reconciler.
type FeeRefund struct {
	ID                  snowflake.ID `json:"id" gorm:"primaryKey"`
	PaymentID           snowflake.ID `json:"payment_id" gorm:"not null;index"`
	StudentFeeAccountID snowflake.ID `json:"student_fee_account_id" gorm:"not null"`
	Amount              int64        `json:"amount" gorm:"not null"`
	Reason              string       `json:"reason" gorm:"type:text"`
	Status              RefundStatus `json:"status" gorm:"type:text;not null"`
	GatewayRefundID     *string      `json:"gateway_refund_id"`
	ProcessedAt         *time.Time   `json:"processed_at"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

func (FeeRefund) TableName() string { return "fee_refunds" }

// RecordInput is a manual cashier entry. Amounts are centavos.
type RecordInput struct {
	StudentFeeAccountID snowflake.ID
	PaymentScheduleID   *snowflake.ID
	Amount              int64
	PaymentDate         time.Time
	PaymentMethod       Method
	ReferenceNumber     string
	CheckNumber         string
	CheckBank           string
	CheckDate           *time.Time
	DepositorName       string
	ProofURL            string
	Notes               string
}

// RecordResult carries the persisted payment plus non-fatal warnings such
// as an overpayment credit.
type RecordResult struct {
	Payment  *Payment
	Warnings []string
}

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	FindByGatewayReference(ctx context.Context, db *gorm.DB, reference string) (*Payment, error)
	// InsertWithHistory persists the payment and its first history row in
	// the caller's transaction.
	InsertWithHistory(ctx context.Context, db *gorm.DB, payment *Payment, source string) error
	// UpdateStatus mutates status/check_status in place and appends the
	// matching history row.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, checkStatus *CheckStatus, source string) error
	History(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) ([]*StatusHistory, error)
	InsertRefund(ctx context.Context, db *gorm.DB, refund *FeeRefund) error
	FindRefundByPayment(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (*FeeRefund, error)
	MarkRefundProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, gatewayRefundID string, processedAt time.Time) error
}

type Service interface {
	Record(ctx context.Context, input RecordInput) (*RecordResult, error)
	// ResolveCheck moves a pending check to cleared or bounced. BounceFee
	// of zero means use the policy default.
	ResolveCheck(ctx context.Context, paymentID snowflake.ID, target CheckStatus, bounceFee int64) error
	Get(ctx context.Context, id snowflake.ID) (*Payment, error)
	History(ctx context.Context, paymentID snowflake.ID) ([]*StatusHistory, error)
}

var (
	ErrPaymentNotFound      = errors.New("payment_not_found")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidMethod        = errors.New("invalid_payment_method")
	ErrInvalidPaymentDate   = errors.New("invalid_payment_date")
	ErrCheckDetailsRequired = errors.New("check_details_required")
	ErrNotACheck            = errors.New("payment_not_a_check")
	ErrCheckAlreadyResolved = errors.New("check_already_resolved")
	ErrInvalidCheckStatus   = errors.New("invalid_check_status")
)
