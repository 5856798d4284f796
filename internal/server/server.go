package server

import (
	"context"
	"net/http"
	"time"

	"github.com/chrisfit/storefront/internal/auth"
	authdomain "github.com/chrisfit/storefront/internal/auth/domain"
	"github.com/chrisfit/storefront/internal/auth/session"
	"github.com/chrisfit/storefront/internal/authorization"
	"github.com/chrisfit/storefront/internal/catalog"
	"github.com/chrisfit/storefront/internal/config"
	"github.com/chrisfit/storefront/internal/media"
	"github.com/chrisfit/storefront/internal/media/probe"
	"github.com/chrisfit/storefront/internal/observability"
	obslogger "github.com/chrisfit/storefront/internal/observability/logger"
	obsmetrics "github.com/chrisfit/storefront/internal/observability/metrics"
	obstracing "github.com/chrisfit/storefront/internal/observability/tracing"
	"github.com/chrisfit/storefront/internal/product"
	productdomain "github.com/chrisfit/storefront/internal/product/domain"
	"github.com/chrisfit/storefront/internal/ratelimit"
	"github.com/chrisfit/storefront/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	auth.Module,
	session.Module,
	ratelimit.Module,
	fx.Provide(storage.New),
	media.Module,
	product.Module,
	catalog.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	authsvc      authdomain.Service
	sessions     *session.Manager
	authzSvc     authorization.Service
	productSvc   productdomain.Service
	catalog      *catalog.State
	validator    *probe.Validator
	store        storage.Storage
	loginLimiter *ratelimit.LoginLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Authsvc      authdomain.Service
	Sessions     *session.Manager
	AuthzSvc     authorization.Service
	ProductSvc   productdomain.Service
	Catalog      *catalog.State
	Validator    *probe.Validator
	Storage      storage.Storage         `optional:"true"`
	LoginLimiter *ratelimit.LoginLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		authsvc:      p.Authsvc,
		sessions:     p.Sessions,
		authzSvc:     p.AuthzSvc,
		productSvc:   p.ProductSvc,
		catalog:      p.Catalog,
		validator:    p.Validator,
		store:        p.Storage,
		loginLimiter: p.LoginLimiter,
		obsMetrics:   p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerCatalogRoutes()
	svc.registerAdminRoutes()
	svc.registerMediaRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
	auth.POST("/change-password", s.AuthRequired(), s.ChangePassword)
}

func (s *Server) registerCatalogRoutes() {
	api := s.engine.Group("/api/catalog")

	api.GET("/products", s.ListCatalog)
	api.GET("/products/:id", s.GetCatalogProduct)
	api.GET("/featured", s.ListFeatured)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.AuthRequired())

	products := admin.Group("/products")
	{
		products.GET("", s.ListProducts)
		products.GET("/:id", s.GetProduct)
		products.POST("", s.CreateProduct)
		products.PUT("/:id", s.UpdateProduct)
		products.DELETE("/:id", s.DeleteProduct)
		products.POST("/:id/featured", s.ToggleFeatured)
		products.POST("/:id/promo", s.TogglePromo)
		products.POST("/:id/active", s.ToggleActive)
	}

	admin.POST("/media/validate", s.ValidateMedia)
}

// registerMediaRoutes serves objects of the local driver. S3 objects are
// served by the bucket itself.
func (s *Server) registerMediaRoutes() {
	local, ok := s.store.(*storage.Local)
	if !ok {
		return
	}
	s.engine.StaticFS(storage.LocalMediaRoute, local.FileSystem())
}
