// Package api assembles the HTTP server: middleware chain, error handling,
// operational endpoints and the web and GraphQL surfaces.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"todo-app/auth"
	"todo-app/config"
	"todo-app/domain"
	"todo-app/graph"
	"todo-app/telemetry"
	"todo-app/web"
)

const csrfCookie = "_csrf"

// Deps are the collaborators the server is built from.
type Deps struct {
	Config   *config.Config
	Logger   *log.Logger
	Store    domain.Store
	Accounts *domain.Accounts
	Tasks    *domain.Tasks
	Tokens   *auth.Tokens
	// Limiter backs the rate limiter. Nil selects echo's in-process store.
	Limiter middleware.RateLimiterStore
	// Registry receives HTTP and auth metrics and is served on /metrics.
	Registry *prometheus.Registry
}

// New builds the echo server with every route mounted.
func New(d Deps) (*echo.Echo, error) {
	cfg := d.Config
	logger := d.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	reg := d.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, err
	}
	authMetrics := telemetry.NewAuthMetrics(reg)
	gh, err := graph.NewHandler(graph.NewResolver(d.Accounts, d.Tasks, d.Tokens, graph.Options{
		TokenTTL: cfg.APITokenTTL,
		Secure:   cfg.Production(),
		Metrics:  authMetrics,
		Logger:   logger,
	}))
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.JSONSerializer = sonicSerializer{}
	e.HTTPErrorHandler = errorHandler(logger, cfg.Production())

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.WithFields(log.Fields{
				"method": c.Request().Method,
				"path":   c.Request().URL.Path,
				"stack":  string(stack),
			}).WithError(err).Error("http.panic")
			return err
		},
	}))
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(middleware.SecureWithConfig(secureConfig(cfg.Production())))
	if cfg.AllowedOrigin != "" {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     []string{cfg.AllowedOrigin},
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderXCSRFToken},
			AllowCredentials: true,
		}))
	}
	bodyLimit, err := bodyLimitMiddleware(cfg.BodyLimit)
	if err != nil {
		return nil, err
	}
	e.Use(bodyLimit)
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "todo",
		Registerer: reg,
		Skipper:    func(c echo.Context) bool { return c.Path() == "/metrics" },
	}))
	e.Use(middleware.RateLimiterWithConfig(rateLimiterConfig(cfg, d.Limiter)))
	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper:        csrfExempt,
		TokenLookup:    "form:" + web.CSRFFormField + ",header:" + echo.HeaderXCSRFToken,
		ContextKey:     web.CSRFContextKey,
		CookieName:     csrfCookie,
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   cfg.Production(),
		CookieSameSite: http.SameSiteLaxMode,
		ErrorHandler: func(err error, c echo.Context) error {
			return &CSRFError{err: err}
		},
	}))
	e.Use(auth.Authenticate(d.Tokens, logger))

	e.GET("/healthz", healthz(d.Store, logger))
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg}))
	e.GET("/favicon.ico", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.StaticFS("/static", web.Assets())
	// The global limit only sees compressed bytes; the route limit caps the decoded body.
	e.POST(graph.Path, echo.WrapHandler(gh), middleware.Decompress(), bodyLimit, bufferBody)

	web.NewHandler(d.Accounts, d.Tasks, d.Tokens, web.Options{
		SessionTTL: cfg.WebSessionTTL,
		Secure:     cfg.Production(),
		Metrics:    authMetrics,
		Logger:     logger,
	}).Register(e)

	return e, nil
}

// csrfExempt lists paths that never carry form submissions from our pages.
func csrfExempt(c echo.Context) bool {
	p := c.Request().URL.Path
	switch {
	case p == graph.Path, p == "/favicon.ico", p == "/healthz", p == "/metrics":
		return true
	case strings.HasPrefix(p, "/static/"):
		return true
	}
	return false
}

func secureConfig(production bool) middleware.SecureConfig {
	cfg := middleware.SecureConfig{
		XSSProtection:         "0",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ContentSecurityPolicy: "default-src 'self'; form-action 'self'; frame-ancestors 'none'",
		ReferrerPolicy:        "same-origin",
	}
	if production {
		cfg.HSTSMaxAge = 31536000
	}
	return cfg
}

func bodyLimitMiddleware(limit string) (mw echo.MiddlewareFunc, err error) {
	// BodyLimit panics on a malformed size.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid body limit %q", limit)
		}
	}()
	return middleware.BodyLimit(limit), nil
}

// bufferBody reads the request body up front so a limit violation surfaces
// as an HTTP error instead of a decode failure inside the wrapped handler.
func bufferBody(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		body, err := io.ReadAll(req.Body)
		if err != nil {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				return he
			}
			return echo.NewHTTPError(http.StatusBadRequest, "Unreadable request body").SetInternal(err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
		return next(c)
	}
}

func rateLimiterConfig(cfg *config.Config, store middleware.RateLimiterStore) middleware.RateLimiterConfig {
	if store == nil {
		store = middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(float64(cfg.RateLimitRequests) / cfg.RateLimitWindow.Seconds()),
			Burst:     cfg.RateLimitRequests,
			ExpiresIn: cfg.RateLimitWindow,
		})
	}
	return middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/healthz" || p == "/metrics" || strings.HasPrefix(p, "/static/")
		},
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "Unable to identify client").SetInternal(err)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, please try again later.")
		},
	}
}
