package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accountdomain "github.com/smallbiznis/proppass/internal/account/domain"
	"github.com/smallbiznis/proppass/internal/authorization"
	"github.com/smallbiznis/proppass/internal/config"
	invitationdomain "github.com/smallbiznis/proppass/internal/invitation/domain"
	membershipdomain "github.com/smallbiznis/proppass/internal/membership/domain"
	"github.com/smallbiznis/proppass/internal/observability"
	obsmiddleware "github.com/smallbiznis/proppass/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/proppass/internal/observability/metrics"
	obstracing "github.com/smallbiznis/proppass/internal/observability/tracing"
	propertydomain "github.com/smallbiznis/proppass/internal/property/domain"
	"github.com/smallbiznis/proppass/internal/ratelimit"
	tierdomain "github.com/smallbiznis/proppass/internal/tier/domain"
	usagedomain "github.com/smallbiznis/proppass/internal/usage/domain"
	"github.com/smallbiznis/proppass/internal/usage/liveevents"
	userdomain "github.com/smallbiznis/proppass/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
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

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	authzSvc      authorization.Service
	invitationSvc invitationdomain.Service
	propertySvc   propertydomain.Service
	membershipSvc membershipdomain.Service
	accountSvc    accountdomain.Service
	tierSvc       tierdomain.Service
	usageSvc      usagedomain.Service
	userRepo      userdomain.Repository
	acceptLimiter *ratelimit.AcceptLimiter
	liveUsage     *liveevents.Hub
}

type ServerParams struct {
	fx.In

	Engine        *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	AuthzSvc      authorization.Service
	InvitationSvc invitationdomain.Service
	PropertySvc   propertydomain.Service
	MembershipSvc membershipdomain.Service
	AccountSvc    accountdomain.Service
	TierSvc       tierdomain.Service
	UsageSvc      usagedomain.Service
	UserRepo      userdomain.Repository
	AcceptLimiter *ratelimit.AcceptLimiter `optional:"true"`
	LiveUsage     *liveevents.Hub          `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Engine,
		cfg:           p.Cfg,
		db:            p.DB,
		authzSvc:      p.AuthzSvc,
		invitationSvc: p.InvitationSvc,
		propertySvc:   p.PropertySvc,
		membershipSvc: p.MembershipSvc,
		accountSvc:    p.AccountSvc,
		tierSvc:       p.TierSvc,
		usageSvc:      p.UsageSvc,
		userRepo:      p.UserRepo,
		acceptLimiter: p.AcceptLimiter,
		liveUsage:     p.LiveUsage,
	}

	s.registerInvitationRoutes()
	s.registerPropertyRoutes()
	s.registerAccountRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerInvitationRoutes() {
	invitations := s.engine.Group("/invitations")
	{
		invitations.POST("", s.UserAuth(), s.CreateInvitation)
		invitations.GET("/sent", s.UserAuth(), s.ListSentInvitations)
		invitations.GET("/account/:accountId", s.UserAuth(), s.ListAccountInvitations)
		invitations.GET("/property/:propertyId", s.UserAuth(), s.ListPropertyInvitations)

		invitations.POST("/:id/accept", s.AcceptRateLimit(), s.AcceptInvitation)
		invitations.POST("/:id/decline", s.OptionalUserAuth(), s.DeclineInvitation)
		invitations.POST("/:id/revoke", s.UserAuth(), s.RevokeInvitation)
	}
}

func (s *Server) registerPropertyRoutes() {
	properties := s.engine.Group("/properties", s.UserAuth())
	{
		properties.POST("", s.CreateProperty)
		properties.GET("/:propertyId", s.GetProperty)
		properties.PATCH("/:propertyId", s.UpdateProperty)
		properties.GET("/:propertyId/users", s.ListPropertyUsers)
		properties.POST("/:propertyId/users", s.AddPropertyUsers)
		properties.PATCH("/:propertyId/team", s.SyncPropertyTeam)
	}
}

func (s *Server) registerAccountRoutes() {
	accounts := s.engine.Group("/accounts", s.UserAuth())
	{
		accounts.POST("", s.CreateAccount)
		accounts.GET("/:accountId", s.GetAccount)
		accounts.GET("/:accountId/limits", s.GetAccountLimits)
		accounts.GET("/:accountId/properties", s.ListAccountProperties)
		accounts.POST("/:accountId/contacts", s.AddContact)
		accounts.GET("/:accountId/contacts", s.ListContacts)

		usage := accounts.Group("/:accountId/usage")
		usage.POST("", s.LogUsage)
		usage.GET("/monthly", s.GetMonthlySpend)
		usage.GET("/categories", s.GetMonthlySpendByCategory)
		usage.GET("/budget", s.CheckBudget)
		usage.GET("/history", s.GetUsageHistory)
		usage.GET("/live", s.StreamUsage)
	}
}
