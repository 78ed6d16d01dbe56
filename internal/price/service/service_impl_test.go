package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	pricedomain "github.com/karoonet/billing/internal/price/domain"
	pricerepo "github.com/karoonet/billing/internal/price/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) pricedomain.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	strip := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", strip))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", strip))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&pricedomain.PriceHistory{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  pricerepo.Provide(),
	})
}

func TestSetPriceOpensAndClosesPeriods(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	first, err := svc.SetPrice(ctx, pricedomain.SetPriceRequest{
		PackageCode:   "fibre-100",
		PackageName:   "Fibre 100/50",
		MonthlyPrice:  89900,
		EffectiveFrom: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Nil(t, first.EffectiveTo)
	require.Equal(t, "ZAR", first.Currency)

	cutover := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	second, err := svc.SetPrice(ctx, pricedomain.SetPriceRequest{
		PackageCode:   "fibre-100",
		MonthlyPrice:  94900,
		EffectiveFrom: cutover,
	})
	require.NoError(t, err)
	require.Equal(t, "Fibre 100/50", second.PackageName)

	current, err := svc.Current(ctx, "fibre-100")
	require.NoError(t, err)
	require.Equal(t, second.ID, current.ID)
	require.EqualValues(t, 94900, current.MonthlyPrice)

	history, err := svc.History(ctx, "fibre-100")
	require.NoError(t, err)
	require.Len(t, history, 2)

	var open int
	for _, period := range history {
		if period.EffectiveTo == nil {
			open++
		} else {
			require.True(t, period.EffectiveTo.Equal(cutover))
		}
	}
	require.Equal(t, 1, open)
}

func TestPriceAtResolvesHistoricalPeriod(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.SetPrice(ctx, pricedomain.SetPriceRequest{
		PackageCode:   "fibre-100",
		PackageName:   "Fibre 100/50",
		MonthlyPrice:  89900,
		EffectiveFrom: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = svc.SetPrice(ctx, pricedomain.SetPriceRequest{
		PackageCode:   "fibre-100",
		MonthlyPrice:  94900,
		EffectiveFrom: time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	old, err := svc.At(ctx, "fibre-100", time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.EqualValues(t, 89900, old.MonthlyPrice)

	current, err := svc.At(ctx, "fibre-100", time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.EqualValues(t, 94900, current.MonthlyPrice)

	_, err = svc.At(ctx, "fibre-100", time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, pricedomain.ErrPriceNotFound)
}

func TestSetPriceValidation(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.SetPrice(ctx, pricedomain.SetPriceRequest{MonthlyPrice: 100})
	require.ErrorIs(t, err, pricedomain.ErrInvalidPackage)

	_, err = svc.SetPrice(ctx, pricedomain.SetPriceRequest{PackageCode: "fibre-100"})
	require.ErrorIs(t, err, pricedomain.ErrInvalidPrice)

	_, err = svc.SetPrice(ctx, pricedomain.SetPriceRequest{
		PackageCode:   "fibre-100",
		MonthlyPrice:  89900,
		EffectiveFrom: time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// New period cannot start before the current one.
	_, err = svc.SetPrice(ctx, pricedomain.SetPriceRequest{
		PackageCode:   "fibre-100",
		MonthlyPrice:  94900,
		EffectiveFrom: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, pricedomain.ErrInvalidEffectiveDate)

	_, err = svc.Current(ctx, "unknown-package")
	require.ErrorIs(t, err, pricedomain.ErrPriceNotFound)
}
