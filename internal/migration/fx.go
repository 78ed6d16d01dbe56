package migration

import (
	auditdomain "github.com/karoonet/billing/internal/audit/domain"
	"github.com/karoonet/billing/internal/config"
	invoicedomain "github.com/karoonet/billing/internal/invoice/domain"
	paymentdomain "github.com/karoonet/billing/internal/payment/domain"
	pricedomain "github.com/karoonet/billing/internal/price/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Local sqlite runs derive the schema from the models.
			return conn.AutoMigrate(
				&invoicedomain.Invoice{},
				&paymentdomain.EventRecord{},
				&auditdomain.Entry{},
				&pricedomain.PriceHistory{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
