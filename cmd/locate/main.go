package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"parcel-locator/internal/config"
	"parcel-locator/internal/db"
	"parcel-locator/internal/logger"
)

var (
	cfg    *config.Config
	appLog zerolog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "locate",
		Short: "Find the cadastral parcel shown in a property photo",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
			appLog = logger.New(cfg.Environment)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createAddressCmd())
	rootCmd.AddCommand(createImportDVFCmd())
	rootCmd.AddCommand(createCleanupCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// openDatabase returns nil without error when no DSN is configured and the
// command can run without one.
func openDatabase(required bool) (*gorm.DB, error) {
	database, err := db.New(cfg, appLog)
	if err == nil {
		return database, nil
	}
	if !required && errors.Is(err, db.ErrNotConfigured) {
		return nil, nil
	}
	return nil, fmt.Errorf("connect database: %w", err)
}
