package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/specharvest/config"
	"github.com/mohammad-safakhou/specharvest/internal/pipeline"
	"github.com/mohammad-safakhou/specharvest/internal/runtime"
	"github.com/mohammad-safakhou/specharvest/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewEcho builds the HTTP surface. A nil secret leaves /api unauthenticated.
func NewEcho(rh *RunsHandler, secret []byte, gatherer prometheus.Gatherer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api")
	if len(secret) > 0 {
		api.Use(runtime.EchoAuthMiddleware(secret))
	}
	rh.Register(api.Group("/runs"), len(secret) > 0)
	return e
}

// Run serves the API until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	comps, err := pipeline.Build(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer comps.Close()

	var secret []byte
	if cfg.Server.JWTSecret != "" {
		secret, err = runtime.LoadJWTSecret(cfg)
		if err != nil {
			return err
		}
	}

	rh := NewRunsHandler(comps.Store, comps.Pipeline)
	e := NewEcho(rh, secret, prometheus.DefaultGatherer)

	logger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	stopMetrics := runtime.ServeMetrics(cfg.Telemetry, prometheus.DefaultGatherer, logger)

	sched := scheduler.New(cfg.Schedule, comps.Store, comps.Pipeline, comps.Redis)
	sched.Start()

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10001"
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			sched.Stop()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
	_ = stopMetrics(shutdownCtx)
	sched.Stop()
	return nil
}
