package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/acquiring/internal/audit/domain"
	"github.com/smallbiznis/acquiring/internal/config"
	"github.com/smallbiznis/acquiring/internal/observability"
	obsmiddleware "github.com/smallbiznis/acquiring/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/acquiring/internal/observability/metrics"
	obstracing "github.com/smallbiznis/acquiring/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/acquiring/internal/payment/domain"
	"github.com/smallbiznis/acquiring/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	ratelimit.Module,
	fx.Provide(func() *obsmetrics.HTTPMetrics {
		return obsmetrics.NewHTTPMetrics(prometheus.DefaultRegisterer)
	}),
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Params struct {
	fx.In

	Engine     *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	DB         *gorm.DB `optional:"true"`
	PaymentSvc paymentdomain.Service
	AuditSvc   auditdomain.Service
	Limiter    *ratelimit.APILimiter `optional:"true"`
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	db         *gorm.DB
	paymentSvc paymentdomain.Service
	auditSvc   auditdomain.Service
	limiter    *ratelimit.APILimiter
	apiKeyHash []byte
}

func NewServer(p Params) (*Server, error) {
	if p.Cfg.APIKeyHash == "" && p.Cfg.IsProduction() {
		return nil, &config.ConfigurationError{Setting: "API_KEY_HASH"}
	}
	s := &Server{
		engine:     p.Engine,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		db:         p.DB,
		paymentSvc: p.PaymentSvc,
		auditSvc:   p.AuditSvc,
		limiter:    p.Limiter,
		apiKeyHash: []byte(p.Cfg.APIKeyHash),
	}
	if len(s.apiKeyHash) == 0 {
		s.log.Warn("API_KEY_HASH not set, API authentication disabled")
	}
	s.RegisterRoutes()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) RegisterRoutes() {
	s.engine.GET("/healthz", s.Health)

	v1 := s.engine.Group("/v1", s.RateLimit(), s.APIKeyRequired(), PaymentScope())

	payments := v1.Group("/payments")
	payments.POST("/register", s.Register)
	payments.POST("/register-preauth", s.RegisterPreAuth)
	payments.POST("/apple-pay", s.PayWithApplePay)
	payments.POST("/samsung-pay", s.PayWithSamsungPay)
	payments.POST("/google-pay", s.PayWithGooglePay)
	payments.GET("/:id", s.GetPayment)
	payments.GET("/:id/operations", s.ListOperations)
	payments.POST("/:id/deposit", s.Deposit)
	payments.POST("/:id/reverse", s.Reverse)
	payments.POST("/:id/refund", s.Refund)
	payments.POST("/:id/status", s.QueryStatus)

	v1.POST("/gateway/:operation", s.PassThrough)
}

func (s *Server) Health(c *gin.Context) {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
