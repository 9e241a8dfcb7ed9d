package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/lobbychat/internal/app"
	"github.com/vovakirdan/lobbychat/internal/config"
	"github.com/vovakirdan/lobbychat/internal/log"
)

type cliFlags struct {
	configPath string
	overrides  config.Overrides
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:           "lobbychat",
		Short:         "Single-room anonymous chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to config.yaml")
	pf.StringVar(&flags.overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&flags.overrides.SQLitePath, "db", "", "sqlite database path")
	root.Flags().StringVar(&flags.overrides.Addr, "addr", "", "HTTP listen address")
	root.Flags().BoolVar(&flags.overrides.NoStdin, "no-stdin", false, "do not read operator messages from stdin")

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context(), flags)
		},
	})

	return root
}

func loadConfig(flags *cliFlags) (config.Config, *zerolog.Logger, error) {
	bootstrap := log.New("info", "console")

	cfg, path, err := config.Load(bootstrap, flags.configPath)
	if err != nil {
		return cfg, bootstrap, fmt.Errorf("load config: %w", err)
	}
	cfg.UpdateFrom(flags.overrides)

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("config", path).Msg("configuration loaded")
	return cfg, logger, nil
}

func serve(ctx context.Context, flags *cliFlags) error {
	cfg, logger, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Str("room", cfg.Chat.RoomID).Msg("starting lobbychat server")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrate(ctx context.Context, flags *cliFlags) error {
	cfg, logger, err := loadConfig(flags)
	if err != nil {
		return err
	}

	st, err := app.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx, logger); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info().Str("driver", cfg.Store.Driver).Msg("schema up to date")
	return nil
}
