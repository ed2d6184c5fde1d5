package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veilcampus/warden/moderation"
	"github.com/veilcampus/warden/moderation/errs"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	engine *moderation.Engine
	echo   *echo.Echo
	httpd  *http.Server
	logger *slog.Logger

	jwtSecret    []byte
	serviceToken string
}

type Config struct {
	Logger       *slog.Logger
	Bind         string
	JWTSecret    []byte
	ServiceToken string
	// defaults to prometheus.DefaultRegisterer
	Registerer prometheus.Registerer
}

func NewServer(eng *moderation.Engine, config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	e := echo.New()

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		engine:       eng,
		echo:         e,
		logger:       logger,
		jwtSecret:    config.JWTSecret,
		serviceToken: config.ServiceToken,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("warden"))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "warden",
		Registerer: config.Registerer,
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.HTTPErrorHandler = srv.errorHandler
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000, // 365 days
	}))

	e.GET("/_health", srv.HandleHealthCheck)

	mod := e.Group("/v1", srv.requireModerator)
	mod.GET("/moderators", srv.HandleListModerators)
	mod.GET("/moderators/me", srv.HandleWhoami)
	mod.POST("/moderators", srv.HandleAppoint)
	mod.DELETE("/moderators/:id", srv.HandleRemoveModerator)
	mod.POST("/punishments", srv.HandlePunish)
	mod.POST("/punishments/:id/revoke", srv.HandleUnban)
	mod.POST("/users/:hash/warn", srv.HandleWarn)
	mod.POST("/users/:hash/flags", srv.HandleFlag)
	mod.GET("/users/:hash", srv.HandleInspect)
	mod.POST("/content/:id/remove", srv.HandleRemoveContent)
	mod.POST("/content/:id/restore", srv.HandleRestoreContent)
	mod.GET("/audit", srv.HandleAuditQuery, srv.requireAuditAccess)
	mod.GET("/audit/export", srv.HandleAuditExport, srv.requireAuditAccess)
	mod.GET("/audit/summary", srv.HandleAuditSummary, srv.requireAuditAccess)

	internal := e.Group("/internal", srv.requireServiceToken)
	internal.GET("/enforce", srv.HandleCanUserAct)
	internal.GET("/visible", srv.HandleIsContentVisible)
	internal.GET("/effective", srv.HandleEffectivePunishment)
	internal.POST("/activity", srv.HandleRecordActivity)

	return srv
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

// Run serves the API and metrics listeners until an OS exit signal or a listener failure.
func (srv *Server) Run(ctx context.Context, metricsListen string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := &http.Server{
		Addr:    metricsListen,
		Handler: promhttp.Handler(),
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		srv.logger.Info("starting server", "bind", srv.httpd.Addr)
		if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server shutting down unexpectedly: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		srv.logger.Info("starting metrics endpoint", "bind", metricsListen)
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start metrics endpoint: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		srv.logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(srv.httpd.Shutdown(sctx), metrics.Shutdown(sctx))
	})

	err := eg.Wait()
	srv.logger.Info("graceful shutdown complete")
	return err
}

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

// httpError maps engine errors onto status codes and stable error names.
func httpError(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code, http.StatusText(he.Code)
	case errs.IsValidation(err):
		return http.StatusBadRequest, "InvalidRequest"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, "RateLimited"
	case errors.Is(err, errs.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "QuotaExceeded"
	case errors.Is(err, errs.ErrLockTimeout):
		return http.StatusServiceUnavailable, "Busy"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code, name := httpError(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("warden-http-internal-error", "err", err)
		msg = "internal error"
	}
	if c.Response().Committed {
		return
	}
	if err := c.JSON(code, GenericError{Error: name, Message: msg}); err != nil {
		srv.logger.Error("failed to write error response", "err", err)
	}
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "warden"})
}
