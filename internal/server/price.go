package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	pricedomain "github.com/karoonet/billing/internal/price/domain"
)

func (s *Server) GetPackagePrice(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))

	// ?at=YYYY-MM-DD resolves a historical price; default is the current one.
	if raw := strings.TrimSpace(c.Query("at")); raw != "" {
		at, err := time.Parse("2006-01-02", raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		item, err := s.priceSvc.At(c.Request.Context(), code, at)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
		return
	}

	item, err := s.priceSvc.Current(c.Request.Context(), code)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

type setPriceRequest struct {
	PackageName   string `json:"package_name"`
	MonthlyPrice  int64  `json:"monthly_price"`
	Currency      string `json:"currency"`
	EffectiveFrom string `json:"effective_from"`
}

func (s *Server) SetPackagePrice(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))

	var req setPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var effectiveFrom time.Time
	if strings.TrimSpace(req.EffectiveFrom) != "" {
		parsed, err := time.Parse("2006-01-02", req.EffectiveFrom)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		effectiveFrom = parsed
	}

	item, err := s.priceSvc.SetPrice(c.Request.Context(), pricedomain.SetPriceRequest{
		PackageCode:   code,
		PackageName:   strings.TrimSpace(req.PackageName),
		MonthlyPrice:  req.MonthlyPrice,
		Currency:      strings.TrimSpace(req.Currency),
		EffectiveFrom: effectiveFrom,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func (s *Server) ListPackagePriceHistory(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))

	items, err := s.priceSvc.History(c.Request.Context(), code)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": items})
}
