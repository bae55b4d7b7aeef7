package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/samandartukhtayev/user-registry/config"
	"github.com/samandartukhtayev/user-registry/database"
	"github.com/samandartukhtayev/user-registry/logger"
	"github.com/samandartukhtayev/user-registry/repository"
)

const serviceName = "user-registry"

func main() {
	var (
		configPath string
		envFile    string
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "CRUD service for users on /users",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}

			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded

			logger.Init(logger.Config{
				Env:         cfg.Log.Env,
				Level:       cfg.Log.Level,
				ServiceName: serviceName,
			})
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (optional)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before config resolution")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), cfg, func(ctx context.Context, m *database.Manager) error {
				if err := m.Migrate(ctx); err != nil {
					return err
				}
				fmt.Printf("✓ Migrations applied (%s)\n", m.Dialect())
				return nil
			})
		},
	}

	var pingTimeout time.Duration
	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Check connectivity to the primary and every replica",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
			defer cancel()

			return withStore(ctx, cfg, func(ctx context.Context, m *database.Manager) error {
				if err := m.Ping(ctx); err != nil {
					return err
				}
				fmt.Printf("✓ Connected to primary and %d replica(s)\n", len(m.Replicas()))

				count, err := repository.NewUserRepository(m).Count(ctx)
				if err != nil {
					fmt.Println("✗ users table not readable, run migrate first")
					return nil
				}
				fmt.Printf("✓ %d user(s) stored\n", count)
				return nil
			})
		},
	}
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 5*time.Second, "Ping timeout")

	root.AddCommand(serveCmd, migrateCmd, pingCmd)

	err := root.ExecuteContext(context.Background())
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// loadEnvFile loads path into the environment. Variables already set win,
// and a missing file is ignored.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// withStore opens the configured store, runs fn and closes the store.
func withStore(ctx context.Context, cfg *config.Config, fn func(ctx context.Context, m *database.Manager) error) error {
	m, err := database.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.L().Warn("close store", logger.Err(err))
		}
	}()

	return fn(ctx, m)
}
