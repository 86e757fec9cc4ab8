package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/checkout"
	"github.com/TheProjectSEO/School-Management-Software-sub003/pkg/money"
)

type createCheckoutRequest struct {
	StudentFeeAccountID string   `json:"student_fee_account_id"`
	PaymentScheduleID   string   `json:"payment_schedule_id"`
	PaymentType         string   `json:"payment_type"`
	Amount              float64  `json:"amount"`
	Methods             []string `json:"methods"`
	Description         string   `json:"description"`
}

type checkoutView struct {
	SessionID       string  `json:"session_id"`
	CheckoutURL     string  `json:"checkout_url"`
	ReferenceNumber string  `json:"reference_number"`
	Amount          float64 `json:"amount"`
}

func (s *Server) CreateCheckout(c *gin.Context) {
	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	accountID, err := parseID(req.StudentFeeAccountID)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	input := checkout.Input{
		FeeAccountID: accountID,
		Type:         checkout.PaymentType(strings.TrimSpace(req.PaymentType)),
		CustomAmount: money.ToCentavos(req.Amount),
		Methods:      req.Methods,
		Description:  strings.TrimSpace(req.Description),
	}

	if req.PaymentScheduleID != "" {
		scheduleID, err := parseID(req.PaymentScheduleID)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		input.ScheduleID = &scheduleID
	}

	session, err := s.checkoutSvc.Create(c.Request.Context(), input)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": checkoutView{
		SessionID:       session.SessionID,
		CheckoutURL:     session.CheckoutURL,
		ReferenceNumber: session.ReferenceNumber,
		Amount:          money.FromCentavos(session.Amount),
	}})
}
