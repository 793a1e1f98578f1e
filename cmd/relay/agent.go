package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diablodale/gpg-windows-relay/internal/agenttransport"
	"github.com/diablodale/gpg-windows-relay/internal/ipc"
	"github.com/diablodale/gpg-windows-relay/internal/logger"
)

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run AT: hold the agent connection, serve the inter-context API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			var opts []agenttransport.ServiceOption
			if cfg.ConnectTimeout.Duration() > 0 {
				opts = append(opts, agenttransport.WithConnectTimeout(cfg.ConnectTimeout.Duration()))
			}
			if !cfg.Rendezvous.Watch {
				opts = append(opts, agenttransport.WithoutRendezvousWatch())
			}
			at := agenttransport.NewService(cfg.Rendezvous.Path, logger.Log, opts...)
			defer at.Close()

			srv := ipc.NewServer(at, cfg.IPCSocket, logger.Log)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("AT listening", "ipc_socket", cfg.IPCSocket, "rendezvous", cfg.Rendezvous.Path)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.AddCommand(agentStatusCmd())
	return cmd
}

func agentStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report AT process liveness (PID, uptime, session count)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := ipc.NewClient(cfg.IPCSocket)
			st, err := client.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", colorize(ansiRed, "AT not reachable"), err)
			}
			fmt.Printf("%s\npid:      %d\nuptime:   %.0fs\nsessions: %d\n", colorize(ansiGreen, "AT reachable"), st.PID, st.UptimeSeconds, st.SessionCount)
			return nil
		},
	}
}
