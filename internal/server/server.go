package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/activity"
	activitydomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/activity/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/checkout"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/config"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount"
	feedomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway"
	gatewaydomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/observability/metrics"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/observability/tracing"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/ornumber"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/payment"
	paymentdomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/payment/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/providers/pdf"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/ratelimit"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	activity.Module,
	ornumber.Module,
	feeaccount.Module,
	payment.Module,
	gateway.Module,
	checkout.Module,
	pdf.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(tracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	log         *zap.Logger
	paymentSvc  paymentdomain.Service
	accountSvc  feedomain.Service
	accounts    feedomain.Repository
	gatewaySvc  gatewaydomain.Service
	checkoutSvc checkout.Service
	activitySvc activitydomain.Service
	pdf         *pdf.Provider
	limiter     *ratelimit.WebhookLimiter
	metrics     *metrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	Log         *zap.Logger
	PaymentSvc  paymentdomain.Service
	AccountSvc  feedomain.Service
	Accounts    feedomain.Repository
	GatewaySvc  gatewaydomain.Service
	CheckoutSvc checkout.Service
	ActivitySvc activitydomain.Service
	PDF         *pdf.Provider
	Limiter     *ratelimit.WebhookLimiter `optional:"true"`
	Metrics     *metrics.Metrics          `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		log:         p.Log.Named("http.server"),
		paymentSvc:  p.PaymentSvc,
		accountSvc:  p.AccountSvc,
		accounts:    p.Accounts,
		gatewaySvc:  p.GatewaySvc,
		checkoutSvc: p.CheckoutSvc,
		activitySvc: p.ActivitySvc,
		pdf:         p.PDF,
		limiter:     p.Limiter,
		metrics:     p.Metrics,
	}

	svc.registerPaymentRoutes()
	svc.registerAccountRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPaymentRoutes() {
	payments := s.engine.Group("/payments")

	payments.POST("/record", s.RecordPayment)
	payments.PATCH("/record", s.ResolveCheck)
	payments.POST("/checkout", s.CreateCheckout)
	payments.GET("/:id", s.GetPayment)
	payments.GET("/:id/receipt", s.GetReceipt)
}

func (s *Server) registerAccountRoutes() {
	accounts := s.engine.Group("/fee-accounts")

	accounts.GET("/:id", s.GetFeeAccount)
	accounts.GET("/:id/activity", s.ListAccountActivity)
	accounts.POST("/:id/reconcile", s.ReconcileFeeAccount)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/:gateway", s.webhookRateLimit(), s.HandleGatewayWebhook)
}
