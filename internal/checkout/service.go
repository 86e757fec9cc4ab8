package checkout

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type PaymentType string

const (
	// PaymentTypeFull prices the session at the current balance.
	PaymentTypeFull PaymentType = "full"
	// PaymentTypeSchedule prices the session at an installment's
	// outstanding amount.
	PaymentTypeSchedule PaymentType = "schedule"
	PaymentTypeCustom   PaymentType = "custom"
)

// Input prices and scopes a hosted checkout session. CustomAmount is
// centavos and only read for PaymentTypeCustom.
type Input struct {
	FeeAccountID snowflake.ID
	ScheduleID   *snowflake.ID
	Type         PaymentType
	CustomAmount int64
	Methods      []string
	Description  string
}

type Session struct {
	SessionID       string `json:"session_id"`
	CheckoutURL     string `json:"checkout_url"`
	ReferenceNumber string `json:"reference_number"`
	Amount          int64  `json:"amount"`
}

type Service interface {
	Create(ctx context.Context, in Input) (*Session, error)
}

var (
	ErrInvalidPaymentType = errors.New("invalid_payment_type")
	ErrInvalidAmount      = errors.New("invalid_checkout_amount")
	ErrAmountBelowMinimum = errors.New("amount_below_minimum")
	ErrInvalidMethod      = errors.New("invalid_checkout_method")
	ErrCheckoutInProgress = errors.New("checkout_in_progress")
)
