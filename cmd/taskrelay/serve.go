package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskrelay/internal/config"
	"github.com/zulandar/taskrelay/internal/db"
	"github.com/zulandar/taskrelay/internal/gateway"
	"github.com/zulandar/taskrelay/internal/telegram"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Long:  "Receives Telegram updates, handles commands and callbacks, and exposes the scheduler entrypoints. Optionally runs the in-process cron scheduler.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "taskrelay.yaml", "path to Taskrelay config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Database.Database, err)
	}

	client, err := telegram.NewClient(telegram.ClientOpts{
		BotToken: cfg.Telegram.BotToken,
		BaseURL:  cfg.Telegram.APIBase,
	})
	if err != nil {
		return err
	}

	gw, err := gateway.NewGateway(gateway.GatewayOpts{
		DB:        gormDB,
		Messenger: client,
		Out:       out,
	})
	if err != nil {
		return err
	}

	dispatcher, err := gateway.NewDispatcher(gateway.DispatcherOpts{
		DB:          gormDB,
		Messenger:   client,
		WindowHours: cfg.Reminders.WindowHours,
		Band:        time.Duration(cfg.Reminders.BandMinutes) * time.Minute,
		Out:         out,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// In-process cron fallback; a no-op when no schedules are configured.
	go dispatcher.RunScheduler(ctx, cfg.Reminders.SweepCron, cfg.Summary.Cron)

	return gateway.Start(ctx, gateway.ServerOpts{
		Gateway:    gw,
		Dispatcher: dispatcher,
		Port:       cfg.Webhook.Port,
		Secret:     cfg.Webhook.Secret,
		Out:        out,
	})
}
