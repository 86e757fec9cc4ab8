package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	paymentdomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/payment/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/pkg/money"
)

// Amounts cross the API boundary in pesos and are converted to centavos
// at the edge.
type recordPaymentRequest struct {
	StudentFeeAccountID string  `json:"student_fee_account_id"`
	PaymentScheduleID   string  `json:"payment_schedule_id"`
	Amount              float64 `json:"amount"`
	PaymentDate         string  `json:"payment_date"`
	PaymentMethod       string  `json:"payment_method"`
	ReferenceNumber     string  `json:"reference_number"`
	CheckNumber         string  `json:"check_number"`
	CheckBank           string  `json:"check_bank"`
	CheckDate           string  `json:"check_date"`
	DepositorName       string  `json:"depositor_name"`
	ProofURL            string  `json:"proof_url"`
	Notes               string  `json:"notes"`
}

type paymentView struct {
	ID              string  `json:"id"`
	AccountID       string  `json:"student_fee_account_id"`
	Amount          float64 `json:"amount"`
	PaymentMethod   string  `json:"payment_method"`
	Status          string  `json:"status"`
	CheckStatus     *string `json:"check_status,omitempty"`
	ORNumber        *string `json:"or_number,omitempty"`
	ReferenceNumber string  `json:"reference_number,omitempty"`
	PaymentDate     string  `json:"payment_date"`
}

func newPaymentView(p *paymentdomain.Payment) paymentView {
	view := paymentView{
		ID:              p.ID.String(),
		AccountID:       p.StudentFeeAccountID.String(),
		Amount:          money.FromCentavos(p.Amount),
		PaymentMethod:   string(p.PaymentMethod),
		Status:          string(p.Status),
		ORNumber:        p.ORNumber,
		ReferenceNumber: p.ReferenceNumber,
		PaymentDate:     p.PaymentDate.Format("2006-01-02"),
	}
	if p.CheckStatus != nil {
		status := string(*p.CheckStatus)
		view.CheckStatus = &status
	}
	return view
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	accountID, err := parseID(req.StudentFeeAccountID)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	input := paymentdomain.RecordInput{
		StudentFeeAccountID: accountID,
		Amount:              money.ToCentavos(req.Amount),
		PaymentMethod:       paymentdomain.Method(strings.TrimSpace(req.PaymentMethod)),
		ReferenceNumber:     strings.TrimSpace(req.ReferenceNumber),
		CheckNumber:         strings.TrimSpace(req.CheckNumber),
		CheckBank:           strings.TrimSpace(req.CheckBank),
		DepositorName:       strings.TrimSpace(req.DepositorName),
		ProofURL:            strings.TrimSpace(req.ProofURL),
		Notes:               strings.TrimSpace(req.Notes),
	}

	if req.PaymentScheduleID != "" {
		scheduleID, err := parseID(req.PaymentScheduleID)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		input.PaymentScheduleID = &scheduleID
	}

	if req.PaymentDate != "" {
		date, err := time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			AbortWithError(c, paymentdomain.ErrInvalidPaymentDate)
			return
		}
		input.PaymentDate = date
	}

	if req.CheckDate != "" {
		date, err := time.Parse("2006-01-02", req.CheckDate)
		if err != nil {
			AbortWithError(c, paymentdomain.ErrInvalidPaymentDate)
			return
		}
		input.CheckDate = &date
	}

	res, err := s.paymentSvc.Record(c.Request.Context(), input)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     newPaymentView(res.Payment),
		"warnings": res.Warnings,
	})
}

type resolveCheckRequest struct {
	PaymentID   string  `json:"payment_id"`
	CheckStatus string  `json:"check_status"`
	BounceFee   float64 `json:"bounce_fee"`
}

func (s *Server) ResolveCheck(c *gin.Context) {
	var req resolveCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	paymentID, err := parseID(req.PaymentID)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	target := paymentdomain.CheckStatus(strings.TrimSpace(req.CheckStatus))
	err = s.paymentSvc.ResolveCheck(c.Request.Context(), paymentID, target, money.ToCentavos(req.BounceFee))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Check marked as " + string(target)})
}

func (s *Server) GetPayment(c *gin.Context) {
	paymentID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	p, err := s.paymentSvc.Get(c.Request.Context(), paymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	history, err := s.paymentSvc.History(c.Request.Context(), paymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    newPaymentView(p),
		"history": history,
	})
}

func parseID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}
