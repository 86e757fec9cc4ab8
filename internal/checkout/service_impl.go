package checkout

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	activitydomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/activity/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/clock"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/config"
	feedomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/domain"
	gatewaydomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/adapters/paymongo"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/observability/metrics"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/ratelimit"
	"github.com/TheProjectSEO/School-Management-Software-sub003/pkg/money"
	"github.com/oklog/ulid/v2"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Accounts feedomain.Repository
	Client   *paymongo.Client
	Activity activitydomain.Service
	Policy   *config.FeePolicyHolder
	Limiter  *ratelimit.WebhookLimiter `optional:"true"`
	Metrics  *metrics.Metrics          `optional:"true"`
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	accounts feedomain.Repository
	client   *paymongo.Client
	activity activitydomain.Service
	policy   *config.FeePolicyHolder
	limiter  *ratelimit.WebhookLimiter
	metrics  *metrics.Metrics
}

func NewService(p Params) Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("checkout.service"),
		clock:    p.Clock,
		accounts: p.Accounts,
		client:   p.Client,
		activity: p.Activity,
		policy:   p.Policy,
		limiter:  p.Limiter,
		metrics:  p.Metrics,
	}
}

func (s *service) Create(ctx context.Context, in Input) (*Session, error) {
	if !s.client.Configured() {
		return nil, gatewaydomain.ErrGatewayNotConfigured
	}

	account, err := s.accounts.Find(ctx, s.db, in.FeeAccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, feedomain.ErrAccountNotFound
	}
	switch account.Status {
	case feedomain.StatusSettled:
		return nil, feedomain.ErrAccountSettled
	case feedomain.StatusOnHold:
		return nil, feedomain.ErrAccountOnHold
	}

	amount, err := s.resolveAmount(ctx, account, in)
	if err != nil {
		return nil, err
	}

	policy := s.policy.Get()
	if amount < policy.MinOnlineAmountCentavos() {
		return nil, ErrAmountBelowMinimum
	}

	methods, err := resolveMethods(in.Methods, policy.CheckoutMethods)
	if err != nil {
		return nil, err
	}

	// One in-flight checkout per account. A stuck session simply waits
	// for the lease TTL, it is never force-released.
	lockToken, acquired, err := s.limiter.TryLockCheckout(ctx, in.FeeAccountID.String())
	if err != nil {
		s.log.Warn("checkout lock unavailable, proceeding without it", zap.Error(err))
	} else if !acquired {
		return nil, ErrCheckoutInProgress
	} else {
		defer func() {
			if err := s.limiter.ReleaseCheckout(context.WithoutCancel(ctx), in.FeeAccountID.String(), lockToken); err != nil {
				s.log.Warn("failed to release checkout lock", zap.Error(err))
			}
		}()
	}

	refNumber := "PAY-" + ulid.MustNew(ulid.Timestamp(s.clock.Now()), ulid.DefaultEntropy()).String()

	description := in.Description
	if description == "" {
		description = fmt.Sprintf("School fee payment %s", account.SchoolYear)
	}

	metadata := map[string]string{
		"student_fee_account_id": account.ID.String(),
		"student_id":             account.StudentID.String(),
	}
	if in.ScheduleID != nil {
		metadata["payment_schedule_id"] = in.ScheduleID.String()
	}

	sess, err := s.client.CreateCheckoutSession(ctx, paymongo.CheckoutSessionParams{
		LineItems: []paymongo.LineItem{{
			Name:     description,
			Amount:   amount,
			Currency: "PHP",
			Quantity: 1,
		}},
		PaymentMethodTypes: methods,
		Description:        description,
		ReferenceNumber:    refNumber,
		Metadata:           metadata,
	})
	if err != nil {
		return nil, err
	}

	s.writeInitiatedActivity(ctx, account.ID, in.Type, amount, refNumber, sess.ID)
	s.metrics.RecordCheckoutCreated(ctx, paymongo.GatewayName)

	s.log.Info("checkout session created",
		zap.String("fee_account_id", account.ID.String()),
		zap.String("reference_number", refNumber),
		zap.Int64("amount", amount),
	)

	return &Session{
		SessionID:       sess.ID,
		CheckoutURL:     sess.CheckoutURL,
		ReferenceNumber: refNumber,
		Amount:          amount,
	}, nil
}

func (s *service) resolveAmount(ctx context.Context, account *feedomain.StudentFeeAccount, in Input) (int64, error) {
	switch in.Type {
	case PaymentTypeFull:
		if account.CurrentBalance <= 0 {
			return 0, ErrInvalidAmount
		}
		return account.CurrentBalance, nil

	case PaymentTypeSchedule:
		if in.ScheduleID == nil {
			return 0, feedomain.ErrScheduleNotFound
		}
		schedule, err := s.accounts.FindSchedule(ctx, s.db, *in.ScheduleID)
		if err != nil {
			return 0, err
		}
		if schedule == nil || schedule.StudentFeeAccountID != account.ID {
			return 0, feedomain.ErrScheduleNotFound
		}
		outstanding := schedule.Outstanding()
		if outstanding <= 0 {
			return 0, ErrInvalidAmount
		}
		return outstanding, nil

	case PaymentTypeCustom:
		if in.CustomAmount <= 0 {
			return 0, ErrInvalidAmount
		}
		return in.CustomAmount, nil

	default:
		return 0, ErrInvalidPaymentType
	}
}

// resolveMethods defaults to the policy list and rejects anything
// outside it.
func resolveMethods(requested, allowed []string) ([]string, error) {
	if len(requested) == 0 {
		return allowed, nil
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, m := range allowed {
		allowedSet[m] = struct{}{}
	}
	for _, m := range requested {
		if _, ok := allowedSet[m]; !ok {
			return nil, ErrInvalidMethod
		}
	}
	return requested, nil
}

func (s *service) writeInitiatedActivity(ctx context.Context, accountID snowflake.ID, paymentType PaymentType, amount int64, refNumber, sessionID string) {
	err := s.activity.Record(ctx, activitydomain.Entry{
		AccountID:   accountID,
		Action:      activitydomain.ActionCheckoutInitiated,
		Description: fmt.Sprintf("Checkout session created for %s", money.Format(amount)),
		NewValue: map[string]any{
			"reference_number": refNumber,
			"session_id":       sessionID,
			"amount":           amount,
			"payment_type":     string(paymentType),
		},
	})
	if err != nil {
		s.log.Warn("failed to record checkout activity", zap.Error(err))
	}
}
