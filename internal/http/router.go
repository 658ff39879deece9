// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, error handling, metrics,
// CORS, and security headers.
//
// Design goals:
//   - Every fault ends in exactly one error envelope (errorhandler)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-api-errors/docs"
	"github.com/tbourn/go-api-errors/internal/config"
	"github.com/tbourn/go-api-errors/internal/domain"
	"github.com/tbourn/go-api-errors/internal/http/errorhandler"
	"github.com/tbourn/go-api-errors/internal/http/handlers"
	"github.com/tbourn/go-api-errors/internal/http/middleware"
	"github.com/tbourn/go-api-errors/internal/logging"
	"github.com/tbourn/go-api-errors/internal/redact"
	"github.com/tbourn/go-api-errors/internal/repo"
	"github.com/tbourn/go-api-errors/internal/services"
)

// accountRepoShim adapts the repository free functions to the
// services.AccountRepo interface expected by the AccountService.
type accountRepoShim struct{}

// CreateAccount proxies repo.CreateAccount.
func (accountRepoShim) CreateAccount(ctx context.Context, db *gorm.DB, email, name, role string) (*domain.Account, error) {
	return repo.CreateAccount(ctx, db, email, name, role)
}

// GetAccount proxies repo.GetAccount.
func (accountRepoShim) GetAccount(ctx context.Context, db *gorm.DB, id string) (*domain.Account, error) {
	return repo.GetAccount(ctx, db, id)
}

// FindAccountByEmail proxies repo.FindAccountByEmail.
func (accountRepoShim) FindAccountByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Account, error) {
	return repo.FindAccountByEmail(ctx, db, email)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and returns the Prometheus registry backing /metrics.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: propagate or generate the correlation id
//  3. RedactingLogger: access logs with PII scrubbing
//  4. Metrics: observe the final status, error responses included
//  5. Gzip: compress success and error bodies alike
//  6. Recovery: hand panics to the error handler
//  7. Error handler: render faults recorded with c.Error
//  8. Body capture with size cap
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, lg logging.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	eh := errorhandler.New(lg,
		errorhandler.WithMode(cfg.Mode),
		errorhandler.WithMaskHeaders(cfg.MaskHeaders...),
		errorhandler.WithRegisterer(reg),
	)

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID(lg))

	// 3) Structured logging with redaction
	scrub := redact.New(cfg.MaskHeaders...)
	_ = lg.Debug("Masking request headers", map[string]any{"headers": scrub.Names()})
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		Scrubber: scrub,
	}))

	// 4) Prometheus metrics and /metrics endpoint
	r.Use(middleware.NewHTTPMetrics(reg).Handler())
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// 5) Response compression
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/swagger"})))

	// 6) Panics become Internal faults
	r.Use(middleware.Recovery(eh.Handle))

	// 7) One envelope per fault
	r.Use(eh.Middleware())

	// 8) Body cap and capture for error logs
	r.Use(middleware.CaptureBody(cfg.MaxBodyBytes))

	// 9) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", handlers.UserIDHeader, middleware.RequestIDHeader}
	exposeHeaders := []string{middleware.RequestIDHeader, "Content-Length"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStore:    cfg.Security.NoStore,
	}))

	// Fallbacks: unknown routes and methods are both NotFound faults.
	r.NoRoute(eh.NotFound())
	r.NoMethod(eh.NotFound())

	// Liveness/health
	r.GET("/health-check", handlers.HealthCheck)
	r.GET("/health", handlers.HealthCheck)

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	h := handlers.New(services.NewAccountService(db, accountRepoShim{}))

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/accounts", h.CreateAccount)
		api.GET("/accounts/:id", h.GetAccount)
	}

	return reg
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
