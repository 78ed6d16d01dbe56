package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/karoonet/billing/internal/audit/domain"
	invoicedomain "github.com/karoonet/billing/internal/invoice/domain"
	"github.com/karoonet/billing/pkg/db/pagination"
)

type createInvoiceRequest struct {
	InvoiceNumber     string `json:"invoice_number"`
	ProviderReference string `json:"provider_reference"`
	CustomerName      string `json:"customer_name"`
	CustomerEmail     string `json:"customer_email"`
	TotalAmount       int64  `json:"total_amount"`
	Currency          string `json:"currency"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	entity := &invoicedomain.Invoice{
		InvoiceNumber:     strings.TrimSpace(req.InvoiceNumber),
		ProviderReference: strings.TrimSpace(req.ProviderReference),
		CustomerName:      strings.TrimSpace(req.CustomerName),
		CustomerEmail:     strings.TrimSpace(req.CustomerEmail),
		TotalAmount:       req.TotalAmount,
		Currency:          strings.ToUpper(strings.TrimSpace(req.Currency)),
	}
	if err := s.invoiceSvc.Create(c.Request.Context(), entity); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entity)
}

func (s *Server) GetInvoice(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

type manualPaymentRequest struct {
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	Reference     string `json:"reference"`
	PaymentDate   string `json:"payment_date"`
}

func (s *Server) RecordManualPayment(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req manualPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	paymentDate := time.Now().UTC()
	if strings.TrimSpace(req.PaymentDate) != "" {
		parsed, err := time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		paymentDate = parsed
	}

	item, err := s.invoiceSvc.RecordManualPayment(c.Request.Context(), invoicedomain.RecordManualPaymentRequest{
		InvoiceID:     id,
		Amount:        req.Amount,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		Reference:     strings.TrimSpace(req.Reference),
		PaymentDate:   paymentDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func (s *Server) ListInvoiceAudit(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	// The invoice must exist; an empty ledger for a real invoice is a
	// valid (empty) page, not a 404.
	if _, err := s.invoiceSvc.GetByID(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.auditSvc.ListByInvoice(c.Request.Context(), auditdomain.ListByInvoiceRequest{
		Pagination: pagination.Pagination{
			PageToken: c.Query("page_token"),
			PageSize:  parsePageSize(c.Query("page_size")),
		},
		InvoiceID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func parseID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}
