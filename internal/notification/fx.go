package notification

import (
	"strings"

	"github.com/karoonet/billing/internal/config"
	"github.com/karoonet/billing/internal/notification/email"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	fx.Provide(provideEmailProvider),
	fx.Provide(NewDispatcher),
)

func provideEmailProvider(cfg config.Config) email.Provider {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return &email.NoOpProvider{}
	}
	return email.NewSMTP(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}
