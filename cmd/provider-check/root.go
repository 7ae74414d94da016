package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hattiebot/echoprovider/internal/config"
	"github.com/hattiebot/echoprovider/internal/logging"
	"github.com/hattiebot/echoprovider/internal/store"
)

// app carries what every subcommand needs; it is filled in by the root PersistentPreRunE.
type app struct {
	configDir string
	verbose   bool

	cfg    *config.Config
	db     *store.DB
	logger *zap.Logger
}

// newRootCmd builds the command tree. Callers must call app.close after Execute.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "provider-check",
		Short: "Register provider executables and check their stdin/stdout contract",
		Long: `provider-check drives provider executables the way a harness does: one JSON
object on stdin, one {"output": ...} line on stdout, non-zero exit on failure.

Providers are registered by name. Each run executes a conformance suite (the built-in
echo suite unless --suite is given) and is recorded with per-case results.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "config directory (default $PROVIDERCHECK_CONFIG_DIR, ./.providercheck or ~/.config/providercheck)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newRegisterCmd(a),
		newListCmd(a),
		newRemoveCmd(a),
		newRunCmd(a),
		newHistoryCmd(a),
		newPruneCmd(a),
	)
	return root, a
}

func (a *app) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.New(a.configDir)
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if a.verbose {
		level = "debug"
	}
	logger, err := logging.New(level)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDir(); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	a.cfg, a.db, a.logger = cfg, db, logger
	a.logger.Debug("opened store", zap.String("path", cfg.DBPath))
	return nil
}

// providers is valid once PersistentPreRunE has opened the store.
func (a *app) providers() store.ProviderRegistry {
	return a.db
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
		a.db = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
