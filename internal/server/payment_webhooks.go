package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/karoonet/billing/internal/payment/domain"
	"go.uber.org/zap"
)

// HandlePaymentWebhook ingests a Netcash notification. Duplicates answer
// 200 so the gateway stops retrying a delivery that has already settled.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	if s.webhookLimiter.Enabled() {
		allowed, err := s.webhookLimiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Redis being down must not drop gateway notifications.
			s.log.Warn("webhook rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			AbortWithError(c, ErrTooManyRequests)
			return
		}
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	err = s.paymentSvc.IngestWebhook(c.Request.Context(), payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
