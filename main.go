package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"clinic-booking-server/internal/config"
	"clinic-booking-server/internal/handlers"
	"clinic-booking-server/internal/logging"
	"clinic-booking-server/internal/metrics"
	"clinic-booking-server/internal/middleware"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/notify"
	"clinic-booking-server/internal/repository"
	"clinic-booking-server/internal/routes"
	"clinic-booking-server/internal/services"
	"clinic-booking-server/internal/utils"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-booking-server",
		Short: "Clinic appointment booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the booking API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, _ := cmd.Flags().GetBool("seed")

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == "memory" {
				return errors.New("nothing to migrate with DB_DRIVER=memory")
			}
			db, err := models.InitDB(models.DatabaseConfig{
				Driver: cfg.Database.Driver,
				DSN:    cfg.Database.DSN,
				Debug:  cfg.Database.Debug,
			})
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("Schema is up to date.")

			if seed {
				ctx := context.Background()
				if err := seedGorm(ctx, db); err != nil {
					return fmt.Errorf("seeding failed: %w", err)
				}
				fmt.Println("Demo clinic, doctor, patient and staff user created.")
			}
			return nil
		},
	}
	cmd.Flags().Bool("seed", false, "Insert the demo clinic and users")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user id and role",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if !models.Role(role).Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			if ttl == 0 {
				ttl = time.Duration(cfg.JWTExpirationMinutes) * time.Minute
			}
			token, err := utils.GenerateAccessToken(userID, models.Role(role), cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("user", "", "User id placed in the token")
	cmd.Flags().String("role", string(models.RoleStaff), "Role placed in the token (admin, staff, doctor, patient)")
	cmd.Flags().Duration("ttl", 0, "Token lifetime; defaults to JWT_EXPIRATION_MINUTES")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runServer(cfg *config.Config) error {
	logger := logging.New(cfg.LogLevel, cfg.Environment)
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	ctx := context.Background()

	store, directory, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics := metrics.NewBookingMetrics(registry)

	publishers, closeSink, err := buildPublishers(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up event sink")
	}
	defer closeSink()
	dispatcher := notify.NewDispatcher(logger, bookingMetrics, cfg.Events.PublishTimeout, publishers...)

	bookings := services.NewBookingService(store, directory, dispatcher, bookingMetrics, logger, services.Options{
		CancellationWindow: cfg.CancellationWindow(),
		DefaultSlotMinutes: cfg.Booking.DefaultSlotMinutes,
	})
	directoryService := services.NewDirectoryService(directory)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Deps{
		JWTSecret:    cfg.JWTSecret,
		Appointments: handlers.NewAppointmentHandler(bookings, cfg.CancellationWindow(), logger, cfg.IsDevelopment()),
		Directory:    handlers.NewDirectoryHandler(directoryService, bookings, logger, cfg.IsDevelopment()),
		Gatherer:     registry,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("port", cfg.Port).Str("db", cfg.Database.Driver).Str("events", cfg.Events.Sink).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.AppointmentStore, repository.Directory, error) {
	if cfg.Database.Driver == "memory" {
		mem := repository.NewMemoryStore()
		if err := seedMemory(ctx, mem); err != nil {
			return nil, nil, err
		}
		logDemoTokens(logger, cfg)
		return mem, mem, nil
	}

	db, err := models.InitDB(models.DatabaseConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Debug:  cfg.Database.Debug,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to database: %w", err)
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")
	return repository.NewGormAppointmentStore(db), repository.NewGormDirectory(db), nil
}

// buildPublishers returns the configured event sinks and a cleanup func.
func buildPublishers(ctx context.Context, cfg *config.Config, logger zerolog.Logger) ([]notify.Publisher, func(), error) {
	noop := func() {}
	switch cfg.Events.Sink {
	case "redis":
		opts, err := redis.ParseURL(cfg.Events.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			// Publishing is best-effort; start anyway and let the dispatcher log failures.
			logger.Warn().Err(err).Msg("redis unreachable at startup")
		}
		return []notify.Publisher{notify.NewRedisPublisher(client, cfg.Events.RedisStream)}, func() { _ = client.Close() }, nil
	case "sqs":
		p, err := notify.NewSQSPublisherFromEnv(ctx, cfg.Events.AWSRegion, cfg.Events.SQSQueueURL)
		if err != nil {
			return nil, noop, err
		}
		logger.Info().Str("region", cfg.Events.AWSRegion).Str("queue", cfg.Events.SQSQueueURL).Msg("publishing events to SQS")
		return []notify.Publisher{p}, noop, nil
	default:
		return []notify.Publisher{notify.NewLogPublisher(logger)}, noop, nil
	}
}
