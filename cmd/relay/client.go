package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diablodale/gpg-windows-relay/internal/clientmediator"
	"github.com/diablodale/gpg-windows-relay/internal/ipc"
	"github.com/diablodale/gpg-windows-relay/internal/logger"
)

func clientCmd() *cobra.Command {
	var acceptRate float64
	var acceptBurst int

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Run CM: accept local client connections, bridge them to AT",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			rate := acceptRate
			if rate == 0 {
				rate = cfg.AcceptRatePerSecond
			}
			burst := acceptBurst
			if burst == 0 {
				burst = cfg.AcceptBurst
			}
			if rate > 0 && burst < 1 {
				burst = 1
			}

			agent := ipc.NewClient(cfg.IPCSocket)
			var opts []clientmediator.Option
			if rate > 0 {
				opts = append(opts, clientmediator.WithAcceptRateLimit(rate, burst))
			}
			listener := clientmediator.NewListener(cfg.ClientSocket, agent, logger.Log, opts...)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("CM listening", "client_socket", cfg.ClientSocket, "ipc_socket", cfg.IPCSocket)
			return listener.Serve(ctx)
		},
	}
	cmd.Flags().Float64Var(&acceptRate, "accept-rate", 0, "max new client connections per second (0 = use config value; unlimited if that is 0 too)")
	cmd.Flags().IntVar(&acceptBurst, "accept-burst", 0, "accept rate limiter burst size (0 = use config value; at least 1 when a rate is set)")
	cmd.AddCommand(clientStatusCmd())
	return cmd
}

func clientStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report reachability of the AT process this client would dial",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			agent := ipc.NewClient(cfg.IPCSocket)
			st, err := agent.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("AT not reachable at %s: %w", cfg.IPCSocket, err)
			}
			fmt.Printf("AT reachable: pid=%d uptime=%.0fs sessions=%d\n", st.PID, st.UptimeSeconds, st.SessionCount)
			return nil
		},
	}
}
