package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/ehr/reportlink/internal/domain/linkage"
	"github.com/ehr/reportlink/internal/domain/patient"
	"github.com/ehr/reportlink/internal/platform/auth"
	"github.com/ehr/reportlink/internal/platform/db"
	"github.com/ehr/reportlink/internal/platform/hl7v2"
	"github.com/ehr/reportlink/internal/platform/middleware"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and, when MLLP_ADDR is set, the MLLP listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			fuzzy, _ := cmd.Flags().GetBool("mllp-fuzzy")
			return runServer(fuzzy)
		},
	}
	cmd.Flags().Bool("mllp-fuzzy", false, "use fuzzy matching for reports received over MLLP")
	return cmd
}

// newEcho builds the HTTP surface. It is separate from runServer so tests
// can drive it with httptest.
func newEcho(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", db.HealthHandler(a.checks...))

	apiV1 := e.Group("/api/v1")
	authHandler := auth.NewHandler(a.users, a.tokens)
	authHandler.RegisterPublicRoutes(apiV1)

	protected := apiV1.Group("", auth.SessionMiddleware(a.tokens))
	authHandler.RegisterRoutes(protected)
	patient.NewHandler(a.patients).RegisterRoutes(protected)
	linkage.NewHandler(a.linkage).RegisterRoutes(protected)
	return e
}

func runServer(mllpFuzzy bool) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	e := newEcho(a)

	if a.cfg.MLLPAddr != "" {
		handler := a.linkage.MLLPHandler(auth.SystemSession("mllp"), linkage.IngestOptions{Fuzzy: mllpFuzzy})
		mllpServer := hl7v2.NewMLLPServer(a.cfg.MLLPAddr, handler, logger)
		if err := mllpServer.Start(); err != nil {
			return fmt.Errorf("start MLLP listener: %w", err)
		}
		defer mllpServer.Stop()
	}

	go func() {
		addr := ":" + a.cfg.Port
		logger.Info().Str("addr", addr).Str("store", a.cfg.Store).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
