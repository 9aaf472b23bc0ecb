package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskrelay/internal/config"
	"github.com/zulandar/taskrelay/internal/db"
	"github.com/zulandar/taskrelay/internal/gateway"
	"github.com/zulandar/taskrelay/internal/telegram"
)

func newSweepCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one reminder sweep",
		Long:  "Scans the lookahead windows and sends deduplicated task reminders. Intended for external schedulers (cron, systemd timers).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotify(cmd, configPath, func(ctx context.Context, d *gateway.Dispatcher, out io.Writer) error {
				report, err := d.RunReminderSweep(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Sweep complete: %d sent, %d skipped\n", report.Sent, report.Skipped)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "taskrelay.yaml", "path to Taskrelay config file")
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Send the daily admin summary",
		Long:  "Computes same-day aggregates and sends one summary per administrator. Not deduplicated; schedule at most once per day.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotify(cmd, configPath, func(ctx context.Context, d *gateway.Dispatcher, out io.Writer) error {
				return d.RunDailySummary(ctx)
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "taskrelay.yaml", "path to Taskrelay config file")
	return cmd
}

// runNotify wires config, DB, and the Telegram client, then runs one
// dispatcher flow.
func runNotify(cmd *cobra.Command, configPath string, flow func(context.Context, *gateway.Dispatcher, io.Writer) error) error {
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

	return flow(cmd.Context(), dispatcher, out)
}
