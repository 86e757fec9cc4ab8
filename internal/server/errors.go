package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	activitydomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/activity/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/checkout"
	feedomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/domain"
	gatewaydomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/domain"
	paymentdomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/payment/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrReceiptUnavailable = errors.New("receipt_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return ErrInvalidRequest
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, gatewaydomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, gatewaydomain.ErrGatewayNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrReceiptUnavailable),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidMethod),
		errors.Is(err, paymentdomain.ErrInvalidPaymentDate),
		errors.Is(err, paymentdomain.ErrCheckDetailsRequired),
		errors.Is(err, paymentdomain.ErrNotACheck),
		errors.Is(err, paymentdomain.ErrCheckAlreadyResolved),
		errors.Is(err, paymentdomain.ErrInvalidCheckStatus),
		errors.Is(err, feedomain.ErrAccountSettled),
		errors.Is(err, feedomain.ErrAccountOnHold),
		errors.Is(err, checkout.ErrInvalidPaymentType),
		errors.Is(err, checkout.ErrInvalidAmount),
		errors.Is(err, checkout.ErrAmountBelowMinimum),
		errors.Is(err, checkout.ErrInvalidMethod),
		errors.Is(err, activitydomain.ErrInvalidAction),
		errors.Is(err, activitydomain.ErrInvalidAccount),
		errors.Is(err, activitydomain.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, feedomain.ErrAccountNotFound),
		errors.Is(err, feedomain.ErrScheduleNotFound),
		errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, gatewaydomain.ErrUnknownGateway),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
