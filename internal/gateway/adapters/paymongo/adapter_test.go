package paymongo_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/config"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/adapters/paymongo"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/domain"
)

func newAdapter(secret string, live bool) *paymongo.Adapter {
	return paymongo.NewAdapter(config.Config{
		PayMongo: config.PayMongoConfig{
			SecretKey:     "sk_test_key",
			WebhookSecret: secret,
			LiveMode:      live,
		},
	}, zap.NewNop())
}

func signed(secret string, payload []byte, live bool) http.Header {
	headers := http.Header{}
	headers.Set(paymongo.SignatureHeader, paymongo.Sign(secret, "1767139200", payload, live))
	return headers
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	adapter := newAdapter("whsec_abc", false)
	payload := []byte(`{"data":{"id":"evt_1","type":"payment.paid"}}`)

	if err := adapter.Verify(payload, signed("whsec_abc", payload, false)); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	adapter := newAdapter("whsec_abc", false)
	payload := []byte(`{}`)

	err := adapter.Verify(payload, signed("whsec_other", payload, false))
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("got %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyRejectsMissingHeader(t *testing.T) {
	adapter := newAdapter("whsec_abc", false)

	err := adapter.Verify([]byte(`{}`), http.Header{})
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("got %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyUnconfigured(t *testing.T) {
	adapter := newAdapter("", false)

	err := adapter.Verify([]byte(`{}`), http.Header{})
	if !errors.Is(err, domain.ErrGatewayNotConfigured) {
		t.Fatalf("got %v, want ErrGatewayNotConfigured", err)
	}
}

func TestVerifyLiveModeUsesLiveSignature(t *testing.T) {
	payload := []byte(`{"data":{"id":"evt_live"}}`)

	live := newAdapter("whsec_abc", true)
	if err := live.Verify(payload, signed("whsec_abc", payload, true)); err != nil {
		t.Fatalf("live verify: %v", err)
	}
	// A test-mode header has an empty li slot, so live mode must reject it.
	if err := live.Verify(payload, signed("whsec_abc", payload, false)); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("got %v, want ErrInvalidSignature", err)
	}
}

func TestParseCheckoutPicksPaidPayment(t *testing.T) {
	adapter := newAdapter("whsec_abc", false)

	payload := []byte(`{
		"data": {
			"id": "evt_cs",
			"type": "checkout_session.payment.paid",
			"data": {
				"id": "cs_1",
				"attributes": {
					"reference_number": "PAY-XYZ",
					"metadata": {
						"student_fee_account_id": "1234567890123456789",
						"payment_schedule_id": "987654321987654321"
					},
					"payments": [
						{"id": "pay_pending", "attributes": {"amount": 100, "status": "awaiting"}},
						{
							"id": "pay_ok",
							"attributes": {
								"amount": 250000,
								"fee": 5000,
								"status": "paid",
								"paid_at": 1767139200,
								"source": {"type": "gcash"}
							}
						}
					]
				}
			}
		}
	}`)

	event, err := adapter.Parse(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.ExternalID != "evt_cs" || event.Type != domain.EventCheckoutPaid {
		t.Fatalf("envelope: got %s/%s", event.ExternalID, event.Type)
	}
	if event.GatewayPaymentID != "pay_ok" {
		t.Fatalf("gateway payment: got %q, want pay_ok", event.GatewayPaymentID)
	}
	if event.ReferenceNumber != "PAY-XYZ" {
		t.Fatalf("reference: got %q", event.ReferenceNumber)
	}
	if event.Amount != 250000 || event.Fee != 5000 {
		t.Fatalf("amounts: got amount=%d fee=%d", event.Amount, event.Fee)
	}
	// Net amount falls back to amount minus fee when the gateway omits it.
	if event.NetAmount != 245000 {
		t.Fatalf("net amount: got %d, want 245000", event.NetAmount)
	}
	if event.SourceType != "gcash" {
		t.Fatalf("source: got %q", event.SourceType)
	}
	if want := time.Unix(1767139200, 0).UTC(); !event.PaidAt.Equal(want) {
		t.Fatalf("paid at: got %v, want %v", event.PaidAt, want)
	}
	if event.FeeAccountID == nil || event.FeeAccountID.String() != "1234567890123456789" {
		t.Fatalf("fee account: got %v", event.FeeAccountID)
	}
	if event.ScheduleID == nil || event.ScheduleID.String() != "987654321987654321" {
		t.Fatalf("schedule: got %v", event.ScheduleID)
	}
}

func TestParseFailedEvent(t *testing.T) {
	adapter := newAdapter("whsec_abc", false)

	payload := []byte(`{
		"data": {
			"id": "evt_fail",
			"type": "payment.failed",
			"data": {
				"id": "pay_fail",
				"attributes": {
					"amount": 150000,
					"last_payment_error": {"code": "card_declined", "message": "The card was declined"}
				}
			}
		}
	}`)

	event, err := adapter.Parse(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Amount != 150000 {
		t.Fatalf("amount: got %d", event.Amount)
	}
	if event.FailureCode != "card_declined" || event.FailureMessage != "The card was declined" {
		t.Fatalf("failure: got %q/%q", event.FailureCode, event.FailureMessage)
	}
}

func TestParseRefundEvent(t *testing.T) {
	adapter := newAdapter("whsec_abc", false)

	payload := []byte(`{
		"data": {
			"id": "evt_ref",
			"type": "refund.refunded",
			"data": {
				"id": "ref_1",
				"attributes": {"amount": 50000, "payment_id": "pay_abc", "status": "succeeded"}
			}
		}
	}`)

	event, err := adapter.Parse(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Amount != 50000 || event.RefundPaymentRef != "pay_abc" {
		t.Fatalf("refund: got amount=%d ref=%q", event.Amount, event.RefundPaymentRef)
	}
}

func TestParseRejectsInvalidPayload(t *testing.T) {
	adapter := newAdapter("whsec_abc", false)

	for _, payload := range []string{
		`not json`,
		`{"data": {"id": "", "type": ""}}`,
		`{"data": {"id": "evt_1", "type": ""}}`,
	} {
		if _, err := adapter.Parse([]byte(payload)); !errors.Is(err, domain.ErrInvalidPayload) {
			t.Fatalf("payload %q: got %v, want ErrInvalidPayload", payload, err)
		}
	}
}
