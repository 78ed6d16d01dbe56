package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig holds the tunable billing parameters. Currency is fixed to
// ZAR; the VAT rate and the set of anchor billing days are deployment
// configuration with sane South African defaults.
type BillingConfig struct {
	Currency  string  `mapstructure:"currency"`
	VATRate   float64 `mapstructure:"vatRate"`
	CycleDays []int   `mapstructure:"cycleDays"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		Currency:  "ZAR",
		VATRate:   0.15,
		CycleDays: []int{1, 5, 15, 25},
	}
}

// BillingConfigHolder exposes the current billing config and hot-reloads it
// when the backing file changes.
type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/karoonet")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KAROONET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultBillingConfig()
		v.SetDefault("billing.currency", defaults.Currency)
		v.SetDefault("billing.vatRate", defaults.VATRate)
		v.SetDefault("billing.cycleDays", defaults.CycleDays)
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("billing.currency cannot be empty")
	}
	if cfg.VATRate < 0 || cfg.VATRate >= 1 {
		return errors.New("billing.vatRate must be in [0, 1)")
	}
	if len(cfg.CycleDays) == 0 {
		return errors.New("billing.cycleDays cannot be empty")
	}
	for _, day := range cfg.CycleDays {
		if day < 1 || day > 28 {
			return errors.New("billing.cycleDays entries must be between 1 and 28")
		}
	}
	return nil
}
