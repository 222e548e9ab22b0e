package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/nimctl/internal/config"
	"github.com/danmuck/nimctl/internal/lobby"
	"github.com/danmuck/nimctl/internal/logging"
	"github.com/danmuck/nimctl/internal/observability"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		listenAddr string
		adminAddr  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		Long: `Run the game server until SIGINT or SIGTERM.

Examples:
  nimd serve
  nimd serve --config nimd.toml
  nimd serve --listen :9090 --admin 127.0.0.1:9092`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, listenAddr, adminAddr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Server config TOML")
	cmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "NGP listen address, overrides config")
	cmd.Flags().StringVar(&adminAddr, "admin", "", "Admin HTTP listen address, overrides config")

	return cmd
}

func runServe(parent context.Context, configPath, listenAddr, adminAddr string) error {
	logger := observability.InitLogger("nimd")

	fileCfg := config.DefaultServerConfig()
	if strings.TrimSpace(configPath) != "" {
		loaded, err := config.LoadServerConfig(configPath)
		if err != nil {
			return err
		}
		fileCfg = loaded
		if level, ok := logging.ParseLevel(fileCfg.LogLevel); ok {
			zerolog.SetGlobalLevel(level)
		}
	}
	if listenAddr != "" {
		fileCfg.ListenAddr = listenAddr
	}
	if adminAddr != "" {
		fileCfg.AdminAddr = adminAddr
	}

	svcCfg, err := fileCfg.ServiceConfig()
	if err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.RegisterMetrics()
	logger.Info().
		Str("listen", svcCfg.ListenAddr).
		Str("websocket", svcCfg.WebsocketListenAddr).
		Str("admin", svcCfg.AdminListenAddr).
		Msg("nimd.starting")
	if err := lobby.NewServiceWithConfig(svcCfg).Run(ctx); err != nil {
		return err
	}
	logger.Info().Msg("nimd.stopped")
	return nil
}
