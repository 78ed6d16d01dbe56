package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/karoonet/billing/internal/prorata"
)

type prorataPreviewRequest struct {
	PackageCode     string `json:"package_code"`
	MonthlyPrice    int64  `json:"monthly_price"`
	ActivationDate  string `json:"activation_date"`
	CycleDay        int    `json:"cycle_day"`
	IncludeSchedule bool   `json:"include_schedule"`
}

type prorataPreviewResponse struct {
	prorata.VATResult
	Currency string          `json:"currency"`
	Schedule []prorata.Cycle `json:"schedule,omitempty"`
}

// ProrataPreview quotes the partial-month activation charge. The monthly
// price comes either from the request or from the package's price history
// as of the activation date.
func (s *Server) ProrataPreview(c *gin.Context) {
	var req prorataPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	activationDate, err := time.Parse("2006-01-02", strings.TrimSpace(req.ActivationDate))
	if err != nil {
		AbortWithError(c, prorata.ErrInvalidDate)
		return
	}

	billingCfg := s.billingCfg.Get()
	if !allowedCycleDay(billingCfg.CycleDays, req.CycleDay) {
		AbortWithError(c, prorata.ErrInvalidCycleDay)
		return
	}

	monthlyPrice := req.MonthlyPrice
	if monthlyPrice == 0 && strings.TrimSpace(req.PackageCode) != "" {
		period, err := s.priceSvc.At(c.Request.Context(), req.PackageCode, activationDate)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		monthlyPrice = period.MonthlyPrice
	}

	result, err := prorata.CalculateWithVAT(activationDate, monthlyPrice, req.CycleDay, billingCfg.VATRate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := prorataPreviewResponse{
		VATResult: result,
		Currency:  billingCfg.Currency,
	}
	if req.IncludeSchedule {
		schedule, err := prorata.FirstYearSchedule(activationDate, monthlyPrice, req.CycleDay)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		resp.Schedule = schedule
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordProrataPreview(c.Request.Context())
	}
	c.JSON(http.StatusOK, resp)
}

func allowedCycleDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
