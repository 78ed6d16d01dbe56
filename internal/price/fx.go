package price

import (
	"github.com/karoonet/billing/internal/price/repository"
	"github.com/karoonet/billing/internal/price/service"
	"go.uber.org/fx"
)

var Module = fx.Module("price.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
