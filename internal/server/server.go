package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	alertdomain "github.com/beaconly/beacon/internal/alert/domain"
	"github.com/beaconly/beacon/internal/config"
	"github.com/beaconly/beacon/internal/oauth"
	"github.com/beaconly/beacon/internal/poller"
	"github.com/beaconly/beacon/internal/provider"
	servicedomain "github.com/beaconly/beacon/internal/service/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log.Named("http")))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server started", zap.String("addr", cfg.HTTPAddr))
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
	registry    *provider.Registry
	serviceSvc  servicedomain.Service
	alertSvc    alertdomain.Service
	poller      *poller.Poller
	oauthSvc    *oauth.Service
	stateSigner *oauth.StateSigner
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Registry    *provider.Registry
	ServiceSvc  servicedomain.Service
	AlertSvc    alertdomain.Service
	Poller      *poller.Poller
	OAuthSvc    *oauth.Service
	StateSigner *oauth.StateSigner
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		registry:    p.Registry,
		serviceSvc:  p.ServiceSvc,
		alertSvc:    p.AlertSvc,
		poller:      p.Poller,
		oauthSvc:    p.OAuthSvc,
		stateSigner: p.StateSigner,
	}

	svc.registerAPIRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Cron entry point --------
	api.POST("/cron/poll-service", s.PollService)
	api.POST("/cron/poll-all", s.PollAll)

	// -------- Provider catalog --------
	api.GET("/providers", s.ListProviders)
	api.GET("/providers/:id", s.GetProvider)

	// -------- Connected services --------
	services := api.Group("/services", s.IdentityRequired())
	{
		services.GET("", s.ListServices)
		services.POST("", s.ConnectService)
		services.POST("/validate", s.ValidateCredentials)
		services.GET("/:id", s.GetService)
		services.DELETE("/:id", s.DisconnectService)
		services.PUT("/:id/credentials", s.ReauthService)
		services.POST("/:id/enable", s.EnableService)
		services.POST("/:id/disable", s.DisableService)
		services.POST("/:id/sync", s.SyncService)
		services.POST("/:id/simulate-metric", s.SimulateMetric)
		services.GET("/:id/snapshots", s.ListSnapshots)
		services.GET("/:id/alerts", s.ListServiceAlerts)
		services.GET("/:id/alert-events", s.ListServiceAlertEvents)
	}

	// -------- Alerts --------
	alerts := api.Group("/alerts", s.IdentityRequired())
	{
		alerts.GET("", s.ListAlerts)
		alerts.POST("", s.CreateAlert)
		alerts.PUT("/:id", s.UpdateAlert)
		alerts.DELETE("/:id", s.DeleteAlert)
	}
	api.GET("/alert-events", s.IdentityRequired(), s.ListAlertEvents)

	// -------- OAuth connect flow --------
	oauthGroup := api.Group("/oauth")
	{
		oauthGroup.GET("/:provider/authorize", s.IdentityRequired(), s.OAuthAuthorize)
		oauthGroup.GET("/:provider/callback", s.OAuthCallback)
	}
}
