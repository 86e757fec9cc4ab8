package service

import (
	"context"
	"strings"
	"time"

	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/activity/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/clock"
	"github.com/TheProjectSEO/School-Management-Software-sub003/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
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
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("activity.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, entry domain.Entry) error {
	if strings.TrimSpace(entry.Action) == "" {
		return domain.ErrInvalidAction
	}
	if entry.AccountID == 0 {
		return domain.ErrInvalidAccount
	}

	row := &domain.Activity{
		ID:                  s.genID.Generate(),
		StudentFeeAccountID: entry.AccountID,
		Action:              entry.Action,
		Description:         entry.Description,
		RelatedPaymentID:    entry.RelatedPaymentID,
		CreatedAt:           s.clock.Now(),
	}
	if len(entry.OldValue) > 0 {
		row.OldValue = datatypes.JSONMap(entry.OldValue)
	}
	if len(entry.NewValue) > 0 {
		row.NewValue = datatypes.JSONMap(entry.NewValue)
	}

	if err := s.repo.Insert(ctx, s.db, row); err != nil {
		s.log.Warn("failed to write activity log",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, accountID snowflake.ID, req domain.ListRequest) (domain.ListResponse, error) {
	if accountID == 0 {
		return domain.ListResponse{}, domain.ErrInvalidAccount
	}

	var cursor *domain.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(decoded.ID)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		cursor = &domain.Cursor{ID: id, CreatedAt: createdAt}
	}

	limit := req.PageSize
	if limit <= 0 {
		limit = 20
	}

	entries, err := s.repo.List(ctx, s.db, domain.ListFilter{
		AccountID: accountID,
		Action:    req.Action,
		Cursor:    cursor,
		Limit:     limit,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo, entries := pagination.BuildCursorPageInfo(entries, limit, func(a *domain.Activity) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        a.ID.String(),
			CreatedAt: a.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	return domain.ListResponse{
		PageInfo:   *pageInfo,
		Activities: entries,
	}, nil
}
