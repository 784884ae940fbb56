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
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medcrm/clinic/internal/config"
	"github.com/medcrm/clinic/internal/platform/auth"
	"github.com/medcrm/clinic/internal/platform/blobstore"
	"github.com/medcrm/clinic/internal/platform/db"
	"github.com/medcrm/clinic/internal/platform/redisclient"
	"github.com/medcrm/clinic/internal/platform/sandbox"
	"github.com/medcrm/clinic/internal/platform/telemetry"
	"github.com/medcrm/clinic/internal/platform/websocket"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic management API server",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(createAdminCmd())
	return root
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// connect loads and validates the configuration and opens the pool.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
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
			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
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
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func createAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}

			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			loc, _ := cfg.Location()

			svc := newServices(pool, cfg, loc, nil, nil, nil, zerolog.Nop())
			u, created, err := svc.identity.EnsureAdmin(ctx, email, password)
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("Created admin %s (%s).\n", u.Email, u.ID)
			} else {
				fmt.Printf("Admin %s already exists.\n", u.Email)
			}
			return nil
		},
	}
	cmd.Flags().String("email", "", "Admin email")
	cmd.Flags().String("password", "", "Admin password")
	return cmd
}

func seedCmd() *cobra.Command {
	defaults := sandbox.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			seedCfg := sandbox.DefaultConfig()
			seedCfg.Patients, _ = flags.GetInt("patients")
			seedCfg.Departments, _ = flags.GetInt("departments")
			seedCfg.Seed, _ = flags.GetUint64("seed")
			adminEmail, _ := flags.GetString("admin-email")
			adminPassword, _ := flags.GetString("admin-password")

			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			logger := newLogger(cfg.Env)
			loc, _ := cfg.Location()

			svc := newServices(pool, cfg, loc, nil, nil, nil, logger)
			admin, _, err := svc.identity.EnsureAdmin(ctx, adminEmail, adminPassword)
			if err != nil {
				return fmt.Errorf("seed operator: %w", err)
			}
			seedCfg.Operator = admin.ID

			seeder := sandbox.NewSeeder(seedCfg, svc.clinic, svc.patients, svc.scheduling, svc.billing, loc, logger)
			res, err := seeder.Run(ctx)
			if err != nil {
				return err
			}
			logger.Info().
				Int("departments", res.Departments).
				Int("doctors", res.Doctors).
				Int("services", res.Services).
				Int("patients", res.Patients).
				Int("appointments", res.Appointments).
				Int("payments", res.Payments).
				Int("cancelled", res.Cancelled).
				Msg("seed complete")
			return nil
		},
	}
	cmd.Flags().Int("patients", defaults.Patients, "Number of patients to create")
	cmd.Flags().Int("departments", defaults.Departments, "Number of departments to create")
	cmd.Flags().Uint64("seed", 0, "Random seed (0 picks one)")
	cmd.Flags().String("admin-email", "admin@clinic.local", "Admin account the seed acts as")
	cmd.Flags().String("admin-password", "admin-password", "Password for the admin account if it is created")
	return cmd
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, _ := cfg.Location()

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.OTelServiceName,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		Env:         cfg.Env,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	var (
		revoked auth.RevocationStore
		checks  []db.Check
	)
	if cfg.RedisURL != "" {
		rdb, err := redisclient.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		revoked = auth.NewRedisRevocationStore(rdb)
		checks = append(checks, db.Check{Name: "redis", Ping: redisclient.Ping(rdb)})
		logger.Info().Msg("connected to redis")
	} else {
		mem := auth.NewMemoryRevocationStore(10 * time.Minute)
		defer mem.Close()
		revoked = mem
		logger.Warn().Msg("REDIS_URL not set; revoked tokens are kept in memory")
	}

	media, err := blobstore.NewDiskStore(cfg.MediaDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open media directory")
	}

	hub := websocket.NewHub(logger)
	svc := newServices(pool, cfg, loc, revoked, media, hub, logger)
	e := newServer(cfg, logger, svc, serverDeps{
		pool:    pool,
		checks:  checks,
		revoked: revoked,
		hub:     hub,
		media:   media,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           telemetry.Handler(e, cfg.OTelServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
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
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracing shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
