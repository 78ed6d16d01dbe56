// Package server exposes the billing HTTP surface: the gateway webhook
// endpoint, invoice and audit reads, manual payments, pro-rata previews and
// package price management.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/karoonet/billing/internal/audit"
	auditdomain "github.com/karoonet/billing/internal/audit/domain"
	"github.com/karoonet/billing/internal/config"
	"github.com/karoonet/billing/internal/invoice"
	invoicedomain "github.com/karoonet/billing/internal/invoice/domain"
	"github.com/karoonet/billing/internal/notification"
	"github.com/karoonet/billing/internal/observability"
	obsmetrics "github.com/karoonet/billing/internal/observability/metrics"
	"github.com/karoonet/billing/internal/payment"
	paymentdomain "github.com/karoonet/billing/internal/payment/domain"
	"github.com/karoonet/billing/internal/price"
	pricedomain "github.com/karoonet/billing/internal/price/domain"
	"github.com/karoonet/billing/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	observability.Module,
	audit.Module,
	invoice.Module,
	notification.Module,
	payment.Module,
	price.Module,
	ratelimit.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	genID          *snowflake.Node
	billingCfg     *config.BillingConfigHolder
	invoiceSvc     invoicedomain.Service
	auditSvc       auditdomain.Service
	paymentSvc     paymentdomain.Service
	priceSvc       pricedomain.Service
	webhookLimiter *ratelimit.WebhookLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	GenID          *snowflake.Node
	BillingCfg     *config.BillingConfigHolder
	InvoiceSvc     invoicedomain.Service
	AuditSvc       auditdomain.Service
	PaymentSvc     paymentdomain.Service
	PriceSvc       pricedomain.Service
	WebhookLimiter *ratelimit.WebhookLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics       `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		genID:          p.GenID,
		billingCfg:     p.BillingCfg,
		invoiceSvc:     p.InvoiceSvc,
		auditSvc:       p.AuditSvc,
		paymentSvc:     p.PaymentSvc,
		priceSvc:       p.PriceSvc,
		webhookLimiter: p.WebhookLimiter,
		obsMetrics:     p.ObsMetrics,
	}
}

func registerRoutes(s *Server) {
	s.engine.POST("/webhooks/netcash", s.HandlePaymentWebhook)

	api := s.engine.Group("/api")

	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices/:id", s.GetInvoice)
	api.POST("/invoices/:id/payments", s.RecordManualPayment)
	api.GET("/invoices/:id/audit", s.ListInvoiceAudit)

	api.POST("/billing/prorata-preview", s.ProrataPreview)

	api.GET("/packages/:code/price", s.GetPackagePrice)
	api.PUT("/packages/:code/price", s.SetPackagePrice)
	api.GET("/packages/:code/price/history", s.ListPackagePriceHistory)
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}
