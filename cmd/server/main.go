package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/etensports/chat-server/internal/app"
	"github.com/etensports/chat-server/internal/auth"
	"github.com/etensports/chat-server/internal/config"
	"github.com/etensports/chat-server/internal/log"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

type serveFlags struct {
	configPath string
	addr       string
	logLevel   string
	storage    string
	dbPath     string
}

func newRootCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "eten-chat",
		Short: "Eten Sports Wear support chat server",
		Long:  "Serves the storefront support chat: visitor conversations, admin presence and unread tracking over REST and WebSocket.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
		SilenceUsage: true,
	}
	bindServeFlags(cmd, &flags)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHashPasswordCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	bindServeFlags(cmd, &flags)
	return cmd
}

func bindServeFlags(cmd *cobra.Command, flags *serveFlags) {
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&flags.addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flags.storage, "storage", "", "journal driver (memory, sqlite, pebble)")
	cmd.Flags().StringVar(&flags.dbPath, "db", "", "journal path for sqlite or pebble")
}

func runServe(ctx context.Context, flags serveFlags) error {
	_ = godotenv.Load(".env")

	bootLogger := log.New("info", "console")
	cfg, cfgPath, err := config.Load(bootLogger, flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.UpdateFrom(config.Config{
		Addr:     flags.addr,
		LogLevel: flags.logLevel,
		Storage:  config.StorageConfig{Driver: flags.storage, Path: flags.dbPath},
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Str("config", cfgPath).Msg("configuration loaded")
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Str("version", Version).Msg("starting eten chat server")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for admin_password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "eten-chat %s (commit: %s)\n", Version, Commit)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
