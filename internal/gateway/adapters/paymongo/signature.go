package paymongo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/domain"
)

// SignatureHeader carries "t=<ts>,te=<test sig>,li=<live sig>".
const SignatureHeader = "Paymongo-Signature"

// Verify authenticates the webhook delivery. The signature is an
// HMAC-SHA256 of "<timestamp>.<payload>" keyed with the webhook secret;
// test and live mode sign with different keys so the header carries both.
func (a *Adapter) Verify(payload []byte, headers http.Header) error {
	if a.cfg.WebhookSecret == "" {
		return domain.ErrGatewayNotConfigured
	}

	header := strings.TrimSpace(headers.Get(SignatureHeader))
	if header == "" {
		return domain.ErrInvalidSignature
	}

	parts := map[string]string{}
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		parts[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	timestamp := parts["t"]
	signature := parts["te"]
	if a.cfg.LiveMode {
		signature = parts["li"]
	}
	if timestamp == "" || signature == "" {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(a.cfg.WebhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// Sign produces a webhook signature header for the given payload. Used by
// tests and local tooling to fabricate deliveries.
func Sign(secret string, timestamp string, payload []byte, live bool) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	signature := hex.EncodeToString(mac.Sum(nil))

	if live {
		return "t=" + timestamp + ",te=,li=" + signature
	}
	return "t=" + timestamp + ",te=" + signature + ",li="
}
