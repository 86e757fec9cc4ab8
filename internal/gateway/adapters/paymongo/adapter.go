// Package paymongo adapts PayMongo's webhook dialect and REST API to the
// ledger's canonical gateway contract.
package paymongo

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/config"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

const GatewayName = "paymongo"

type Adapter struct {
	cfg config.PayMongoConfig
	log *zap.Logger
}

func NewAdapter(cfg config.Config, log *zap.Logger) *Adapter {
	return &Adapter{
		cfg: cfg.PayMongo,
		log: log.Named("gateway.paymongo"),
	}
}

func (a *Adapter) Gateway() string { return GatewayName }

// Webhook envelope. PayMongo wraps the event as
// {"data": {"id": "evt_...", "type": "<event type>", "data": {resource}}}.
type webhookEnvelope struct {
	Data webhookEvent `json:"data"`
}

type webhookEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data webhookResource `json:"data"`
}

type webhookResource struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Attributes json.RawMessage `json:"attributes"`
}

type eventMetadata struct {
	StudentFeeAccountID string `json:"student_fee_account_id"`
	PaymentScheduleID   string `json:"payment_schedule_id"`
	StudentID           string `json:"student_id"`
}

type paymentAttributes struct {
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	PaidAt    int64  `json:"paid_at"`
	Fee       int64  `json:"fee"`
	NetAmount int64  `json:"net_amount"`
	Source    struct {
		Type string `json:"type"`
	} `json:"source"`
	Metadata *eventMetadata `json:"metadata"`
}

type checkoutAttributes struct {
	PaymentIntent struct {
		ID string `json:"id"`
	} `json:"payment_intent"`
	Payments []struct {
		ID         string            `json:"id"`
		Attributes paymentAttributes `json:"attributes"`
	} `json:"payments"`
	ReferenceNumber string         `json:"reference_number"`
	Metadata        *eventMetadata `json:"metadata"`
}

type failedAttributes struct {
	Amount           int64 `json:"amount"`
	LastPaymentError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_payment_error"`
	Metadata *eventMetadata `json:"metadata"`
}

type refundAttributes struct {
	Amount    int64  `json:"amount"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
}

// Parse converts a verified webhook body into a canonical event.
func (a *Adapter) Parse(payload []byte) (*domain.Event, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	raw := envelope.Data
	if strings.TrimSpace(raw.ID) == "" || strings.TrimSpace(raw.Type) == "" {
		return nil, domain.ErrInvalidPayload
	}

	event := &domain.Event{
		ExternalID: raw.ID,
		Type:       raw.Type,
		RawPayload: payload,
	}

	switch raw.Type {
	case domain.EventCheckoutPaid:
		var attrs checkoutAttributes
		if err := json.Unmarshal(raw.Data.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
		event.ReferenceNumber = attrs.ReferenceNumber
		applyMetadata(event, attrs.Metadata)
		for _, payment := range attrs.Payments {
			if payment.Attributes.Status != "paid" {
				continue
			}
			event.GatewayPaymentID = payment.ID
			applyPaymentAttributes(event, payment.Attributes)
			break
		}

	case domain.EventPaymentPaid:
		var attrs paymentAttributes
		if err := json.Unmarshal(raw.Data.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
		event.GatewayPaymentID = raw.Data.ID
		applyMetadata(event, attrs.Metadata)
		applyPaymentAttributes(event, attrs)

	case domain.EventPaymentFailed:
		var attrs failedAttributes
		if err := json.Unmarshal(raw.Data.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
		event.Amount = attrs.Amount
		applyMetadata(event, attrs.Metadata)
		if attrs.LastPaymentError != nil {
			event.FailureCode = attrs.LastPaymentError.Code
			event.FailureMessage = attrs.LastPaymentError.Message
		}

	case domain.EventRefunded:
		var attrs refundAttributes
		if err := json.Unmarshal(raw.Data.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
		event.Amount = attrs.Amount
		event.RefundPaymentRef = attrs.PaymentID
	}

	return event, nil
}

func applyPaymentAttributes(event *domain.Event, attrs paymentAttributes) {
	event.Amount = attrs.Amount
	event.Fee = attrs.Fee
	event.NetAmount = attrs.NetAmount
	if event.NetAmount == 0 {
		event.NetAmount = attrs.Amount - attrs.Fee
	}
	event.SourceType = attrs.Source.Type
	if attrs.PaidAt > 0 {
		event.PaidAt = time.Unix(attrs.PaidAt, 0).UTC()
	}
}

func applyMetadata(event *domain.Event, metadata *eventMetadata) {
	if metadata == nil {
		return
	}
	if id, err := snowflake.ParseString(strings.TrimSpace(metadata.StudentFeeAccountID)); err == nil && id != 0 {
		event.FeeAccountID = &id
	}
	if id, err := snowflake.ParseString(strings.TrimSpace(metadata.PaymentScheduleID)); err == nil && id != 0 {
		event.ScheduleID = &id
	}
}
