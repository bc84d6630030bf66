package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/garderoba/internal/api"
	"github.com/erazemk/garderoba/internal/auth"
	"github.com/erazemk/garderoba/internal/config"
	"github.com/erazemk/garderoba/internal/ledger"
	"github.com/erazemk/garderoba/internal/metrics"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/notify"
	"github.com/erazemk/garderoba/internal/staff"
	"github.com/erazemk/garderoba/internal/store"
)

var bootstrapUser string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&bootstrapUser, "user", "u", "owner", "creator account created on first run")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	if f := loader.ConfigFile(); f != "" {
		logger.Info("config loaded", "file", f)
	}

	e, err := newEnv(cfg)
	if err != nil {
		return err
	}
	defer e.Close()
	logger.Info("database ready", "path", cfg.Database.Path)

	limits, err := cfg.DepartmentLimits()
	if err != nil {
		return err
	}

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		// Generated on first run and kept in the database.
		jwtSecret, err = store.GetJWTSecret(ctx, e.db)
		if err != nil {
			return err
		}
	}

	staffSvc := staff.NewService(e.db, e.matrix, nil, logger)
	roleSecrets := maps.Clone(cfg.Auth.RoleSecrets)
	if roleSecrets == nil {
		roleSecrets = map[string]string{}
	}
	generated, err := bootstrap(ctx, staffSvc, bootstrapUser, roleSecrets)
	if err != nil {
		return err
	}
	if generated != "" {
		roleSecrets[model.RoleCreator] = generated
		printBootstrap(bootstrapUser, generated)
	}

	secrets, err := auth.NewSecretStore(roleSecrets, cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("loading role secrets: %w", err)
	}

	m := metrics.New()
	guard := auth.NewGuard(auth.DBDirectory{DB: e.db}, secrets,
		auth.WithMaxAttempts(cfg.Auth.MaxAttempts),
		auth.WithLockoutDuration(cfg.Auth.LockoutDuration),
		auth.WithScope(auth.Scope(cfg.Auth.LockoutScope)),
		auth.WithLogger(logger),
		auth.WithObserver(m),
	)

	dispatcher := notify.NewDispatcher(sinks(cfg.Notify, logger), notify.DispatcherConfig{
		QueueSize:    cfg.Notify.QueueSize,
		Workers:      cfg.Notify.Workers,
		MaxRetries:   cfg.Notify.MaxRetries,
		RetryBackoff: cfg.Notify.RetryBackoff,
	}, logger)

	lg, err := ledger.New(e.db, e.matrix,
		ledger.WithLimits(limits),
		ledger.WithPublisher(dispatcher),
		ledger.WithRecorder(m),
		ledger.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	occ, err := lg.Snapshot(ctx)
	if err != nil {
		return err
	}
	m.SetOccupancy(occ)

	loader.Watch(logger, func(next *config.Config) {
		rotated := maps.Clone(next.Auth.RoleSecrets)
		if generated != "" {
			if _, ok := rotated[model.RoleCreator]; !ok {
				if rotated == nil {
					rotated = map[string]string{}
				}
				rotated[model.RoleCreator] = generated
			}
		}
		if err := guard.RotateSecrets(rotated); err != nil {
			logger.Error("role secrets not rotated", "error", err)
		}
	})

	deps := api.Deps{
		DB:         e.db,
		Guard:      guard,
		Ledger:     lg,
		Staff:      staffSvc,
		Matrix:     e.matrix,
		JWTSecret:  jwtSecret,
		TokenTTL:   cfg.Auth.TokenTTL,
		Logger:     logger,
		LoginRate:  cfg.Auth.LoginRate,
		LoginBurst: cfg.Auth.LoginBurst,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = m.Handler()
		deps.MetricsPath = cfg.Metrics.Path
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		sig := <-quit
		logger.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
		}
		if err := dispatcher.Close(ctx); err != nil {
			logger.Error("pending notifications dropped", "error", err)
		}
	}()

	logger.Info("server started", "addr", cfg.Server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	<-done

	logger.Info("server stopped, closing database")
	return nil
}

// sinks builds the delivery targets for custody events.
func sinks(cfg config.NotifyConfig, logger *slog.Logger) []notify.Sink {
	out := []notify.Sink{notify.NewLogSink(logger)}
	if cfg.Redis.Enabled {
		client := notify.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		out = append(out, notify.NewRedisSink(client, cfg.Redis.Channel))
	}
	if cfg.Billing.URL != "" {
		out = append(out, notify.NewWebhookSink(cfg.Billing.URL, nil, cfg.Billing.Timeout))
	}
	return out
}

// bootstrap creates the first creator account when there are no staff
// accounts. If no creator secret is configured it returns a generated one.
func bootstrap(ctx context.Context, svc *staff.Service, username string, secrets map[string]string) (string, error) {
	users, err := svc.ListAll(ctx)
	if err != nil {
		return "", err
	}
	if len(users) > 0 {
		return "", nil
	}
	if _, err := svc.Provision(ctx, username, username, model.RoleCreator); err != nil {
		return "", fmt.Errorf("creating first account: %w", err)
	}
	if _, ok := secrets[model.RoleCreator]; ok {
		return "", nil
	}
	return generateSecret(16)
}

func printBootstrap(username, secret string) {
	fmt.Println("Creator account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Secret:   %s\n", secret)
	fmt.Println()
	fmt.Println("The secret is not stored. Add it to auth.role_secrets.creator to keep it across restarts.")
	fmt.Println()
}

// generateSecret creates a random secret of the given length.
func generateSecret(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
