package main

import (
	"log"
	"net/http"

	"freight-ops/internal/config"
	"freight-ops/internal/logger"
	"freight-ops/internal/modules/stops"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// main is the application composition root. It wires the TMS-backed
// repository behind the stop service and starts the HTTP server.
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.TMSAPIBaseURL == "" {
		log.Fatal("TMS_API_BASE_URL is required")
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	repo := stops.NewRepository(cfg.TMSAPIBaseURL, cfg.TMSAPIToken, cfg.RequestTimeout)
	svc := stops.NewService(repo, zlog, cfg.InflightTTL)
	handler := stops.NewHandler(svc)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if cfg.ClientOrigin != "" {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{cfg.ClientOrigin},
			AllowMethods: []string{http.MethodGet, http.MethodPost},
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	handler.RegisterRoutes(e.Group("/api"))

	zlog.Info("server starting", zap.String("port", cfg.ServerPort), zap.String("tms_api", cfg.TMSAPIBaseURL))
	if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}
