package domain

import (
	"context"
	"errors"
	"time"

	"github.com/TheProjectSEO/School-Management-Software-sub003/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Activity is one immutable row in the fee account audit trail. Rows are
// only ever inserted, never updated or deleted.
type Activity struct {
	ID                  snowflake.ID      `json:"id" gorm:"primaryKey"`
	StudentFeeAccountID snowflake.ID      `json:"student_fee_account_id" gorm:"not null;index"`
	Action              string            `json:"action" gorm:"type:text;not null"`
	Description         string            `json:"description" gorm:"type:text;not null"`
	RelatedPaymentID    *snowflake.ID     `json:"related_payment_id"`
	OldValue            datatypes.JSONMap `json:"old_value" gorm:"type:jsonb"`
	NewValue            datatypes.JSONMap `json:"new_value" gorm:"type:jsonb"`
	CreatedAt           time.Time         `json:"created_at" gorm:"not null"`
}

func (Activity) TableName() string { return "fee_account_activity_log" }

const (
	ActionPaymentRecorded      = "payment_recorded"
	ActionPaymentFailed        = "payment_failed"
	ActionRefundProcessed      = "refund_processed"
	ActionAccountStatusChanged = "account_status_changed"
	ActionLateFeeAdded         = "late_fee_added"
	ActionCheckoutInitiated    = "checkout_initiated"
)

// Entry is the write-side view of an activity row.
type Entry struct {
	AccountID        snowflake.ID
	Action           string
	Description      string
	RelatedPaymentID *snowflake.ID
	OldValue         map[string]any
	NewValue         map[string]any
}

type ListRequest struct {
	pagination.Pagination
	Action string `form:"action"`
}

type ListResponse struct {
	pagination.PageInfo
	Activities []*Activity `json:"activities"`
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	AccountID snowflake.ID
	Action    string
	Cursor    *Cursor
	Limit     int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Activity) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Activity, error)
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, accountID snowflake.ID, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidAccount   = errors.New("invalid_account")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
