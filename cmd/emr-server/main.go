package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/macmann/Thu-Kha-EMR/internal/config"
	"github.com/macmann/Thu-Kha-EMR/internal/domain/identity"
	"github.com/macmann/Thu-Kha-EMR/internal/domain/pharmacy"
	"github.com/macmann/Thu-Kha-EMR/internal/domain/registry"
	"github.com/macmann/Thu-Kha-EMR/internal/domain/scheduling"
	"github.com/macmann/Thu-Kha-EMR/internal/domain/visit"
	"github.com/macmann/Thu-Kha-EMR/internal/platform/auth"
	"github.com/macmann/Thu-Kha-EMR/internal/platform/db"
	"github.com/macmann/Thu-Kha-EMR/internal/platform/httperr"
	"github.com/macmann/Thu-Kha-EMR/internal/platform/metrics"
	"github.com/macmann/Thu-Kha-EMR/internal/platform/middleware"
)

// VisitCreatorAdapter adapts the visit service to the
// scheduling.VisitCreator interface, avoiding a circular import between the
// scheduling and visit packages.
type VisitCreatorAdapter struct {
	svc *visit.Service
}

func (a *VisitCreatorAdapter) CreateVisit(ctx context.Context, data scheduling.VisitData) (uuid.UUID, error) {
	return a.svc.Create(ctx, visit.CreateInput{
		AppointmentID: data.AppointmentID,
		PatientID:     data.PatientID,
		DoctorID:      data.DoctorID,
		Department:    data.Department,
		Date:          data.Date,
		Reason:        data.Reason,
	})
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "emr-server",
		Short: "Clinical scheduling and pharmacy fulfillment API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Metrics
	m := metrics.New(prometheus.DefaultRegisterer)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httperr.Handler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(echomw.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Health and metrics endpoints stay outside auth.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	inTx := func(ctx context.Context, fn func(context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}

	// Services
	registrySvc := registry.NewService(registry.NewPatientRepoPG(pool), registry.NewDoctorRepoPG(pool))
	visitSvc := visit.NewService(visit.NewRepoPG(pool))

	schedulingSvc := scheduling.NewService(
		scheduling.NewAvailabilityRepoPG(pool),
		scheduling.NewBlackoutRepoPG(pool),
		scheduling.NewAppointmentRepoPG(pool),
		registrySvc,
		&VisitCreatorAdapter{svc: visitSvc},
		inTx,
		m,
		logger,
	)

	screener := pharmacy.NewScreener(registrySvc, logger)
	pharmacySvc := pharmacy.NewService(
		pharmacy.NewDrugRepoPG(pool),
		pharmacy.NewStockRepoPG(pool),
		pharmacy.NewPrescriptionRepoPG(pool),
		pharmacy.NewDispenseRepoPG(pool),
		visitSvc,
		screener,
		inTx,
		m,
		logger,
	)

	identitySvc := identity.NewService(
		identity.NewRepoPG(pool),
		cfg.JWTSecret,
		time.Duration(cfg.TokenTTLMin)*time.Minute,
	)

	// Routes
	identityHandler := identity.NewHandler(identitySvc)
	identityHandler.RegisterPublicRoutes(e.Group("/api/v1"))

	apiV1 := e.Group("/api/v1", auth.Middleware(cfg.JWTSecret))
	identityHandler.RegisterRoutes(apiV1)
	registry.NewHandler(registrySvc).RegisterRoutes(apiV1)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(apiV1)
	visit.NewHandler(visitSvc).RegisterRoutes(apiV1)
	pharmacy.NewHandler(pharmacySvc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
