// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/store-rating/internal/config"
	"github.com/iliyamo/store-rating/internal/handler"
	"github.com/iliyamo/store-rating/internal/logger"
	"github.com/iliyamo/store-rating/internal/metrics"
	"github.com/iliyamo/store-rating/internal/middleware"
	"github.com/iliyamo/store-rating/internal/model"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Auth    *handler.AuthHandler
	Admin   *handler.AdminHandler
	Owner   *handler.OwnerHandler
	User    *handler.UserHandler
	Account *handler.AccountHandler
}

// Deps carries everything New needs.  Redis may be nil, which disables the
// rate limiter and the response cache.  A nil Cache is built from Config and
// Redis.  A nil Gatherer leaves /metrics unmounted.
type Deps struct {
	Config   config.Config
	Log      *logger.Logger
	Redis    *redis.Client
	Cache    *middleware.ResponseCache
	Metrics  *metrics.HTTPMetrics
	Gatherer prometheus.Gatherer
	DB       handler.Pinger
	Handlers Handlers
}

// adminDashboard is the only cached route.  Every write that can change its
// counts drops the cached entry.
const adminDashboard = "/admin/dashboard"

// New builds the Echo instance with the global middleware chain and every
// route of the API.
func New(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Cache == nil {
		d.Cache = middleware.NewRedisCache(d.Config.Cache, d.Redis)
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log)

	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(middleware.RequestID(d.Log))
	e.Use(middleware.RequestLogger(d.Log, d.Metrics))

	RegisterRoutes(e, d)
	RegisterAuth(e, d)
	RegisterAdmin(e, d)
	RegisterOwner(e, d)
	RegisterUser(e, d)
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/health", handler.Health)
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(d.DB))
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
}

// invalidatesDashboard is attached to every group with writes that change
// user, store or rating counts.
func invalidatesDashboard(d Deps) echo.MiddlewareFunc {
	return d.Cache.InvalidateOnWrite(d.Log, adminDashboard)
}

// authenticated returns the JWT check followed by a role gate.
func authenticated(d Deps, roles ...model.Role) []echo.MiddlewareFunc {
	mws := []echo.MiddlewareFunc{middleware.JWTAuth(d.Config.JWT.Secret, d.Log)}
	if len(roles) > 0 {
		mws = append(mws, middleware.RequireRole(roles...))
	}
	return mws
}
