package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/creasty/defaults"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"EdgeScan/pkg/http/middleware"
	"EdgeScan/pkg/logger"
	pkgmetrics "EdgeScan/pkg/metrics"
)

// Config is the server section of the application config.
type Config struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
	CORS            bool          `yaml:"cors" default:"true"`
	RateLimit       struct {
		RPS   float64 `yaml:"rps" default:"5"`
		Burst int     `yaml:"burst" default:"10"`
	} `yaml:"rate_limit"`
	// MetricsPath is filled from the metrics section; empty disables it.
	MetricsPath string `yaml:"-"`
}

func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

// ServerOption configures Server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	logger   *logger.Logger
	limiter  middleware.Limiter
	gatherer prometheus.Gatherer
	reg      prometheus.Registerer
}

// WithLogger sets the request and lifecycle logger.
func WithLogger(l *logger.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}

// WithRateLimiter limits /api requests per client IP.
func WithRateLimiter(l middleware.Limiter) ServerOption {
	return func(o *serverOptions) { o.limiter = l }
}

// WithRegistry serves and registers metrics on a custom registry instead
// of the process default.
func WithRegistry(reg *prometheus.Registry) ServerOption {
	return func(o *serverOptions) {
		o.gatherer = reg
		o.reg = reg
	}
}

// Server wraps Echo HTTP server.
type Server struct {
	echo *echo.Echo
	cfg  Config
	l    *logger.Logger
	errs chan error
}

// NewServer builds the Echo instance, installs middleware and lets
// handlers register their routes.
func NewServer(cfg Config, handlers []Handler, opts ...ServerOption) *Server {
	o := &serverOptions{
		gatherer: prometheus.DefaultGatherer,
		reg:      prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.RequestLogging(o.logger, cfg.SlowRequest))
	e.Use(middleware.Metrics(pkgmetrics.NewHTTP(o.reg)))
	e.Use(middleware.Recover(o.logger))
	if cfg.CORS {
		e.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			MaxAge:       10 * time.Minute,
		}))
	}
	e.Use(middleware.RateLimit(o.limiter, "/api/"))

	for _, h := range handlers {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
	e.GET("/healthz", func(c echo.Context) error {
		return SuccessResponse(c, map[string]string{"status": "ok"})
	})
	if cfg.MetricsPath != "" {
		e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{})))
	}

	return &Server{echo: e, cfg: cfg, l: o.logger, errs: make(chan error, 1)}
}

// Start listens in the background. A listen failure is delivered on Errors.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	go func() {
		s.l.Info("http server listening", logger.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Error("http server error", logger.Error(err))
			s.errs <- err
		}
	}()
	return nil
}

// Errors reports a fatal listen error.
func (s *Server) Errors() <-chan error { return s.errs }

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.l.Info("http server stopped")
	return nil
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}
