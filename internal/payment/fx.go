package payment

import (
	"github.com/karoonet/billing/internal/config"
	"github.com/karoonet/billing/internal/payment/netcash"
	"github.com/karoonet/billing/internal/payment/repository"
	paymentservice "github.com/karoonet/billing/internal/payment/service"
	"github.com/karoonet/billing/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config) (*netcash.Adapter, error) {
		return netcash.NewAdapter(cfg.NetcashWebhookSecret)
	}),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
