package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	pricedomain "github.com/karoonet/billing/internal/price/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  pricedomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  pricedomain.Repository
}

func New(p Params) pricedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("price.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// SetPrice opens a new pricing period. The close and the open happen in one
// transaction so there is never more than one current row per package.
func (s *Service) SetPrice(ctx context.Context, req pricedomain.SetPriceRequest) (*pricedomain.PriceHistory, error) {
	code := strings.TrimSpace(req.PackageCode)
	if code == "" {
		return nil, pricedomain.ErrInvalidPackage
	}
	if req.MonthlyPrice <= 0 {
		return nil, pricedomain.ErrInvalidPrice
	}
	effectiveFrom := req.EffectiveFrom.UTC()
	if effectiveFrom.IsZero() {
		effectiveFrom = time.Now().UTC()
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "ZAR"
	}

	entity := &pricedomain.PriceHistory{
		ID:            s.genID.Generate(),
		PackageCode:   code,
		PackageName:   strings.TrimSpace(req.PackageName),
		MonthlyPrice:  req.MonthlyPrice,
		Currency:      currency,
		EffectiveFrom: effectiveFrom,
		CreatedAt:     time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := s.repo.LockOpen(ctx, tx, code)
		if err != nil {
			return err
		}
		if open != nil {
			if !open.EffectiveFrom.Before(effectiveFrom) {
				return pricedomain.ErrInvalidEffectiveDate
			}
			if entity.PackageName == "" {
				entity.PackageName = open.PackageName
			}
			if err := s.repo.CloseOpen(ctx, tx, open.ID, effectiveFrom); err != nil {
				return err
			}
		}
		return s.repo.Insert(ctx, tx, entity)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("package price updated",
		zap.String("package_code", code),
		zap.Int64("monthly_price", entity.MonthlyPrice),
		zap.Time("effective_from", effectiveFrom),
	)
	return entity, nil
}

func (s *Service) Current(ctx context.Context, packageCode string) (*pricedomain.PriceHistory, error) {
	code := strings.TrimSpace(packageCode)
	if code == "" {
		return nil, pricedomain.ErrInvalidPackage
	}
	item, err := s.repo.FindOpen(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pricedomain.ErrPriceNotFound
	}
	return item, nil
}

func (s *Service) At(ctx context.Context, packageCode string, at time.Time) (*pricedomain.PriceHistory, error) {
	code := strings.TrimSpace(packageCode)
	if code == "" {
		return nil, pricedomain.ErrInvalidPackage
	}
	item, err := s.repo.FindAt(ctx, s.db, code, at.UTC())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, pricedomain.ErrPriceNotFound
	}
	return item, nil
}

func (s *Service) History(ctx context.Context, packageCode string) ([]pricedomain.PriceHistory, error) {
	code := strings.TrimSpace(packageCode)
	if code == "" {
		return nil, pricedomain.ErrInvalidPackage
	}
	return s.repo.ListByCode(ctx, s.db, code)
}
