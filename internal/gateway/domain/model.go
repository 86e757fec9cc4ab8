package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Transaction is one inbound gateway event, keyed uniquely by
// (gateway, external_id). Retried deliveries upsert the same row.
type Transaction struct {
	ID                  snowflake.ID   `json:"id" gorm:"primaryKey"`
	Gateway             string         `json:"gateway" gorm:"type:text;not null;uniqueIndex:uq_gateway_transactions_event"`
	ExternalID          string         `json:"external_id" gorm:"type:text;not null;uniqueIndex:uq_gateway_transactions_event"`
	EventType           string         `json:"event_type" gorm:"type:text;not null"`
	WebhookPayload      datatypes.JSON `json:"webhook_payload" gorm:"type:jsonb"`
	ReceivedAt          time.Time      `json:"received_at" gorm:"not null"`
	SignatureValid      bool           `json:"signature_valid" gorm:"not null"`
	Status              string         `json:"status" gorm:"type:text;not null"`
	Amount              int64          `json:"amount" gorm:"not null"`
	PaymentMethodType   *string        `json:"payment_method_type"`
	StudentFeeAccountID *snowflake.ID  `json:"student_fee_account_id"`
	PaymentID           *snowflake.ID  `json:"payment_id"`
	PaidAt              *time.Time     `json:"paid_at"`
	FailureCode         *string        `json:"failure_code"`
	FailureMessage      *string        `json:"failure_message"`
	Processed           bool           `json:"processed" gorm:"not null"`
	ProcessedAt         *time.Time     `json:"processed_at"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

func (Transaction) TableName() string { return "payment_gateway_transactions" }

// Transaction statuses mirror the gateway's view of the money movement.
const (
	TxnStatusPending  = "pending"
	TxnStatusPaid     = "paid"
	TxnStatusFailed   = "failed"
	TxnStatusRefunded = "refunded"
)

// Canonical event types emitted by adapters.
const (
	EventCheckoutPaid  = "checkout_session.payment.paid"
	EventPaymentPaid   = "payment.paid"
	EventPaymentFailed = "payment.failed"
	EventRefunded      = "refund.refunded"
)

// Event is the canonical gateway event parsed by an adapter. All amounts
// are the gateway's minor units, which match the ledger's centavos.
type Event struct {
	ExternalID       string
	Type             string
	Amount           int64
	Fee              int64
	NetAmount        int64
	PaidAt           time.Time
	SourceType       string
	GatewayPaymentID string
	ReferenceNumber  string
	FeeAccountID     *snowflake.ID
	ScheduleID       *snowflake.ID
	FailureCode      string
	FailureMessage   string
	// RefundPaymentRef is the gateway payment id a refund event points at.
	RefundPaymentRef string
	RawPayload       []byte
}

// Adapter converts one gateway's webhook dialect into canonical events.
type Adapter interface {
	Gateway() string
	// Verify authenticates the delivery before anything is stored.
	Verify(payload []byte, headers http.Header) error
	Parse(payload []byte) (*Event, error)
}

type Repository interface {
	// Insert stores the transaction, reporting false when the
	// (gateway, external_id) pair already exists.
	Insert(ctx context.Context, db *gorm.DB, txn *Transaction) (bool, error)
	Find(ctx context.Context, db *gorm.DB, gateway, externalID string) (*Transaction, error)
	// RefreshPayload updates the stored raw payload on a retried delivery.
	RefreshPayload(ctx context.Context, db *gorm.DB, id snowflake.ID, payload []byte, receivedAt time.Time) error
	UpdateOutcome(ctx context.Context, db *gorm.DB, txn *Transaction) error
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
	ListUnprocessed(ctx context.Context, db *gorm.DB, gateway string, limit int) ([]*Transaction, error)
}

type Service interface {
	// Ingest applies one webhook delivery exactly once. Dispatch failures
	// after the transaction is stored are swallowed so the gateway does
	// not retry a partially applied event.
	Ingest(ctx context.Context, gateway string, payload []byte, headers http.Header) error
}

var (
	ErrUnknownGateway        = errors.New("unknown_gateway")
	ErrGatewayNotConfigured  = errors.New("gateway_not_configured")
	ErrInvalidSignature      = errors.New("invalid_webhook_signature")
	ErrInvalidPayload        = errors.New("invalid_webhook_payload")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
)
