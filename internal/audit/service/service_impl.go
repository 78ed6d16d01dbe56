package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/karoonet/billing/internal/audit/domain"
	"github.com/karoonet/billing/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// Append writes one immutable ledger entry. The caller's transaction handle,
// when present in ctx via WithTx, is used so audit rows commit atomically
// with the mutation they describe.
func (s *Service) Append(ctx context.Context, entry *auditdomain.Entry) error {
	if entry == nil {
		return auditdomain.ErrInvalidEventType
	}
	entry.EventType = strings.TrimSpace(entry.EventType)
	if entry.EventType == "" {
		return auditdomain.ErrInvalidEventType
	}
	if entry.ID == 0 {
		entry.ID = s.genID.Generate()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Metadata == nil {
		entry.Metadata = datatypes.JSONMap{}
	}

	if err := s.repo.Insert(ctx, s.conn(ctx), entry); err != nil {
		s.log.Error("failed to append audit entry",
			zap.String("event_type", entry.EventType),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) ListByInvoice(ctx context.Context, req auditdomain.ListByInvoiceRequest) (auditdomain.ListByInvoiceResponse, error) {
	if req.InvoiceID == 0 {
		return auditdomain.ListByInvoiceResponse{}, auditdomain.ErrInvalidInvoice
	}

	var cursor *auditdomain.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListByInvoiceResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339, decoded.CreatedAt)
		if err != nil {
			return auditdomain.ListByInvoiceResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListByInvoiceResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.Cursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		InvoiceID: req.InvoiceID,
		Cursor:    cursor,
		Limit:     int(pageSize),
	})
	if err != nil {
		return auditdomain.ListByInvoiceResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *auditdomain.Entry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	entries := make([]auditdomain.Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, *item)
	}

	return auditdomain.ListByInvoiceResponse{
		PageInfo: *pageInfo,
		Entries:  entries,
	}, nil
}

type txKey struct{}

// WithTx returns a context carrying tx; Append issued under it joins the
// caller's transaction instead of the shared pool.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func (s *Service) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return s.db
}
