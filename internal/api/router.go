package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/quardintel/product-catalog/docs"
	"github.com/quardintel/product-catalog/internal/api/handler"
	"github.com/quardintel/product-catalog/internal/api/middleware"
	"github.com/quardintel/product-catalog/internal/core/ports"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Auth    ports.AuthService
	Catalog ports.CatalogService
	Tokens  ports.TokenValidator
	Users   ports.IdentityStore

	// Readiness lists the dependencies checked by /health/ready.
	Readiness map[string]handler.Pinger

	// Registry receives the HTTP request metrics and backs /metrics.
	// Nil uses the Prometheus default registry.
	Registry *prometheus.Registry

	Logger zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(metricsConfig(deps.Registry)))
	e.Use(middleware.Authenticate(deps.Tokens, deps.Users, deps.Logger, nil))

	// --- Public routes ---
	authHandler := handler.NewAuthHandler(deps.Auth)
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", handler.NewReadinessHandler(deps.Readiness).Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(metricsHandlerConfig(deps.Registry)))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Protected routes ---
	apiGroup := e.Group("/api")
	for _, r := range productRoutes(handler.NewProductHandler(deps.Catalog)) {
		apiGroup.Add(r.method, r.path, r.handler, middleware.RequireRoles(r.roles...))
	}

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

func metricsConfig(reg *prometheus.Registry) echoprometheus.MiddlewareConfig {
	cfg := echoprometheus.MiddlewareConfig{
		Subsystem: "http",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}
	if reg != nil {
		cfg.Registerer = reg
	}
	return cfg
}

func metricsHandlerConfig(reg *prometheus.Registry) echoprometheus.HandlerConfig {
	var cfg echoprometheus.HandlerConfig
	if reg != nil {
		cfg.Gatherer = reg
	}
	return cfg
}
