// Command garderoba runs the custody API server and its admin commands.
package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/erazemk/garderoba/internal/config"
	"github.com/erazemk/garderoba/internal/db"
	"github.com/erazemk/garderoba/internal/permission"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "garderoba",
	Short:         "Item custody and access control",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./garderoba.yaml or /etc/garderoba/garderoba.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env is what the admin commands share: configuration, the migrated
// database and the permission matrix. The caller must defer Close.
type env struct {
	cfg    *config.Config
	db     *sql.DB
	matrix *permission.Matrix
}

func openEnv() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return newEnv(cfg)
}

func newEnv(cfg *config.Config) (*env, error) {
	matrix, err := cfg.PermissionMatrix()
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &env{cfg: cfg, db: database, matrix: matrix}, nil
}

func (e *env) Close() error {
	return e.db.Close()
}
