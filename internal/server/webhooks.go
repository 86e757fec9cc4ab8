package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	gatewaydomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/domain"
)

func (s *Server) HandleGatewayWebhook(c *gin.Context) {
	gateway := strings.TrimSpace(c.Param("gateway"))
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.gatewaySvc.Ingest(c.Request.Context(), gateway, payload, c.Request.Header)
	if err != nil {
		if errors.Is(err, gatewaydomain.ErrEventAlreadyProcessed) {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Already processed"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
