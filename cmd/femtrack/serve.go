package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/femtrack/api/internal/config"
	"github.com/femtrack/api/internal/domain/account"
	"github.com/femtrack/api/internal/domain/screening"
	"github.com/femtrack/api/internal/platform/auth"
	"github.com/femtrack/api/internal/platform/db"
	"github.com/femtrack/api/internal/platform/middleware"
	"github.com/femtrack/api/internal/platform/validate"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the FemTrack API server",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServer(cfg, logger)
		},
	}
}

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return withCode(exitValidation, err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		return withCode(exitValidation, err)
	}
	if cfg.IsDev() && cfg.JWTSigningKey == "" {
		logger.Warn().Msg("JWT_SIGNING_KEY not set; using the development signing key")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Schema:   cfg.DBSchema,
	})
	if err != nil {
		return withCode(exitDatabase, err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := newServer(cfg, pool, logger)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the echo instance with every route mounted. The pool is
// only used when a request reaches the database.
func newServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) *echo.Echo {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(reg)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))

	// Auth middleware
	tokens := auth.NewTokenIssuer(cfg.SigningKey(), cfg.JWTIssuer, cfg.TokenTTL)
	jwtCfg := tokens.Config()
	jwtCfg.Skipper = auth.AuthSkipper
	e.Use(auth.JWTMiddleware(jwtCfg))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group("/api/v1")

	txRunner := db.NewTxRunner(pool)
	accounts := account.NewAccountRepo(pool)
	patients := account.NewPatientProfileRepo(pool)
	doctors := account.NewDoctorProfileRepo(pool)

	// Accounts, patients, doctors
	accountSvc := account.NewService(txRunner, accounts, patients, doctors, auth.NewBcryptHasher(cfg.BcryptCost))
	loginLimit := middleware.LoginRateLimitConfig()
	loginLimit.RequestsPerSecond = cfg.LoginRateLimitRPS
	loginLimit.BurstSize = cfg.LoginRateLimitBurst
	account.NewHandler(accountSvc, tokens, middleware.RateLimit(loginLimit)).RegisterRoutes(apiV1)

	// Screenings
	screeningSvc := screening.NewService(screening.NewEventRepo(pool), account.NewDirectory(patients), metrics)
	screening.NewHandler(screeningSvc).RegisterRoutes(apiV1)

	return e
}
