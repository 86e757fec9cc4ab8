package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	feedomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/domain"
	paymentdomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/payment/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/providers/pdf"
	"github.com/TheProjectSEO/School-Management-Software-sub003/pkg/money"
)

// GetReceipt renders the official receipt PDF for a completed payment.
func (s *Server) GetReceipt(c *gin.Context) {
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
	if p.Status != paymentdomain.StatusCompleted || p.ORNumber == nil {
		AbortWithError(c, ErrReceiptUnavailable)
		return
	}

	account, err := s.accounts.Find(c.Request.Context(), s.db, p.StudentFeeAccountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if account == nil {
		AbortWithError(c, feedomain.ErrAccountNotFound)
		return
	}

	student, err := s.accounts.FindStudent(c.Request.Context(), s.db, account.StudentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var school feedomain.School
	if err := s.db.WithContext(c.Request.Context()).First(&school, "id = ?", account.SchoolID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			AbortWithError(c, err)
			return
		}
	}

	studentName := ""
	if student != nil {
		studentName = student.FirstName + " " + student.LastName
	}

	reference := p.ReferenceNumber
	if reference == "" && p.GatewayReference != nil {
		reference = *p.GatewayReference
	}
	if reference == "" && p.CheckNumber != nil {
		reference = "Check #" + *p.CheckNumber
	}

	data := pdf.ReceiptData{
		SchoolName:  school.Name,
		ORNumber:    *p.ORNumber,
		DatePaid:    p.PaymentDate.Format("January 2, 2006"),
		StudentName: studentName,
		SchoolYear:  account.SchoolYear,
		Method:      string(p.PaymentMethod),
		Reference:   reference,
		Items: []pdf.ReceiptItem{{
			Description: "School fee payment " + account.SchoolYear,
			Amount:      money.Format(p.Amount),
		}},
		Total:   money.Format(p.Amount),
		Balance: money.Format(account.CurrentBalance),
	}

	reader, err := s.pdf.GenerateReceipt(c.Request.Context(), data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := io.ReadAll(reader)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+*p.ORNumber+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}
