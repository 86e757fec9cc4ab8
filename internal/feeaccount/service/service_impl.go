package service

import (
	"context"

	activitydomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/activity/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/clock"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	ActivityRepo activitydomain.Repository
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	activityRepo activitydomain.Repository
	metrics      *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("feeaccount.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		activityRepo: p.ActivityRepo,
		metrics:      p.Metrics,
	}
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.StudentFeeAccount, error) {
	account, err := s.repo.Find(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

// Reconcile recomputes current_balance from completed payments and applies
// the status decision rule. The whole recompute runs in one transaction so
// a concurrent webhook and cashier entry cannot interleave partial writes.
func (s *Service) Reconcile(ctx context.Context, id snowflake.ID) (domain.AccountStatus, error) {
	var result domain.AccountStatus

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.repo.Find(ctx, tx, id)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.ErrAccountNotFound
		}

		completedTotal, completedCount, err := s.repo.CompletedPaymentStats(ctx, tx, id)
		if err != nil {
			return err
		}

		balance := account.TotalFees - completedTotal
		status := nextStatus(account.Status, balance, completedCount)

		if account.Status == domain.StatusSettled && status != domain.StatusSettled {
			// Completed payments are never deleted, so a settled account
			// regaining balance means fee totals were edited upstream.
			s.log.Warn("settled account regained balance, keeping settled",
				zap.String("account_id", account.ID.String()),
				zap.Int64("balance", balance),
			)
			status = domain.StatusSettled
		}

		if balance != account.CurrentBalance || status != account.Status {
			if err := s.repo.UpdateBalance(ctx, tx, id, balance, status); err != nil {
				return err
			}
		}

		if status != account.Status {
			if err := s.applyStudentFlag(ctx, tx, account.StudentID, status); err != nil {
				return err
			}
			if err := s.activityRepo.Insert(ctx, tx, &activitydomain.Activity{
				ID:                  s.genID.Generate(),
				StudentFeeAccountID: account.ID,
				Action:              activitydomain.ActionAccountStatusChanged,
				Description:         "Account status changed after balance reconciliation",
				OldValue:            datatypes.JSONMap{"status": string(account.Status), "current_balance": account.CurrentBalance},
				NewValue:            datatypes.JSONMap{"status": string(status), "current_balance": balance},
				CreatedAt:           s.clock.Now(),
			}); err != nil {
				return err
			}
		}

		result = status
		return nil
	})
	if err != nil {
		return "", err
	}

	s.metrics.RecordReconcile(ctx, string(result))
	return result, nil
}

func nextStatus(current domain.AccountStatus, balance int64, completedCount int64) domain.AccountStatus {
	switch {
	case balance <= 0:
		return domain.StatusSettled
	case current == domain.StatusOnHold:
		// administrative hold survives reconciliation
		return domain.StatusOnHold
	case completedCount > 0:
		return domain.StatusPartialPaid
	default:
		return domain.StatusActive
	}
}

func (s *Service) applyStudentFlag(ctx context.Context, tx *gorm.DB, studentID snowflake.ID, status domain.AccountStatus) error {
	switch status {
	case domain.StatusSettled:
		return s.repo.UpdateStudentPaymentStatus(ctx, tx, studentID, domain.StudentFullyPaid)
	case domain.StatusPartialPaid:
		return s.repo.UpdateStudentPaymentStatus(ctx, tx, studentID, domain.StudentPartialPaid)
	default:
		return nil
	}
}
