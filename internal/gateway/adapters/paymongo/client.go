package paymongo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/config"
)

// Client talks to the PayMongo REST API.
type Client struct {
	cfg  config.PayMongoConfig
	http *http.Client
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg: cfg.PayMongo,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool { return c.cfg.Configured() }

type LineItem struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Quantity    int    `json:"quantity"`
}

type CheckoutSessionParams struct {
	LineItems          []LineItem
	PaymentMethodTypes []string
	Description        string
	ReferenceNumber    string
	Metadata           map[string]string
}

type CheckoutSession struct {
	ID              string
	CheckoutURL     string
	ReferenceNumber string
}

type apiError struct {
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// CreateCheckoutSession creates a hosted checkout page. Amounts are
// centavos; PayMongo rejects sessions under PHP 20.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	body := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"line_items":           params.LineItems,
				"payment_method_types": params.PaymentMethodTypes,
				"success_url":          c.cfg.SuccessURL,
				"cancel_url":           c.cfg.CancelURL,
				"description":          params.Description,
				"reference_number":     params.ReferenceNumber,
				"metadata":             params.Metadata,
				"send_email_receipt":   true,
				"show_description":     true,
				"show_line_items":      true,
			},
		},
	}

	var out struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				CheckoutURL     string `json:"checkout_url"`
				ReferenceNumber string `json:"reference_number"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/checkout_sessions", body, &out); err != nil {
		return nil, err
	}

	return &CheckoutSession{
		ID:              out.Data.ID,
		CheckoutURL:     out.Data.Attributes.CheckoutURL,
		ReferenceNumber: out.Data.Attributes.ReferenceNumber,
	}, nil
}

// CreateRefund refunds a gateway payment. The refund completes
// asynchronously; the refund.refunded webhook closes the loop.
func (c *Client) CreateRefund(ctx context.Context, paymentID string, amount int64, reason string) (string, error) {
	body := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"payment_id": paymentID,
				"amount":     amount,
				"reason":     reason,
			},
		},
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/refunds", body, &out); err != nil {
		return "", err
	}
	return out.Data.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.cfg.SecretKey+":")))

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.Unmarshal(raw, &apiErr); err == nil && len(apiErr.Errors) > 0 {
			return fmt.Errorf("paymongo: %s (%s)", apiErr.Errors[0].Detail, apiErr.Errors[0].Code)
		}
		return fmt.Errorf("paymongo: unexpected status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
