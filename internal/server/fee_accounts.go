package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	activitydomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/activity/domain"
	feedomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/pkg/money"
)

type feeAccountView struct {
	ID             string  `json:"id"`
	StudentID      string  `json:"student_id"`
	SchoolYear     string  `json:"school_year"`
	TotalFees      float64 `json:"total_fees"`
	CurrentBalance float64 `json:"current_balance"`
	TotalLateFees  float64 `json:"total_late_fees"`
	Status         string  `json:"status"`
	Notes          string  `json:"notes"`
}

func newFeeAccountView(a *feedomain.StudentFeeAccount) feeAccountView {
	return feeAccountView{
		ID:             a.ID.String(),
		StudentID:      a.StudentID.String(),
		SchoolYear:     a.SchoolYear,
		TotalFees:      money.FromCentavos(a.TotalFees),
		CurrentBalance: money.FromCentavos(a.CurrentBalance),
		TotalLateFees:  money.FromCentavos(a.TotalLateFees),
		Status:         string(a.Status),
		Notes:          a.Notes,
	}
}

func (s *Server) GetFeeAccount(c *gin.Context) {
	accountID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.accountSvc.Get(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newFeeAccountView(account)})
}

func (s *Server) ListAccountActivity(c *gin.Context) {
	accountID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req activitydomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.activitySvc.List(c.Request.Context(), accountID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReconcileFeeAccount(c *gin.Context) {
	accountID, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	status, err := s.accountSvc.Reconcile(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(status)})
}
