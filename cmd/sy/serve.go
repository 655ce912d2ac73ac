package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/zulandar/stopyard/internal/changefeed"
	"github.com/zulandar/stopyard/internal/config"
	"github.com/zulandar/stopyard/internal/dashboard"
	"github.com/zulandar/stopyard/internal/models"
	"github.com/zulandar/stopyard/internal/notify"
	"github.com/zulandar/stopyard/internal/notify/discord"
	"github.com/zulandar/stopyard/internal/notify/slack"
	"github.com/zulandar/stopyard/internal/planner"
	"github.com/zulandar/stopyard/internal/sap"
	"github.com/zulandar/stopyard/internal/scheduler"
	"github.com/zulandar/stopyard/internal/timeline"
	"gorm.io/gorm"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API, scheduled jobs and notifications",
		Long: `Starts the HTTP API and change stream, runs the cron jobs from the schedule
section of the config and relays changes to the configured Slack and Discord channels.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfig, "path to Stopyard config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides dashboard.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Dashboard.Port = port
	}
	logger := newLogger(cfg.Log, cmd.ErrOrStderr())
	loc := cfg.Timeline.Location()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	board := planner.NewBoard(planner.Options{
		MaxRows:  cfg.Timeline.MaxRows,
		Ruler:    timeline.RulerMode(cfg.Timeline.Ruler),
		Location: loc,
	})
	if err := board.Refresh(ctx, gormDB); err != nil {
		return err
	}

	sched, err := scheduler.New(scheduler.Opts{
		DB:       gormDB,
		Schedule: cfg.Schedule,
		Location: loc,
		Logger:   logger.WithPrefix("scheduler"),
	})
	if err != nil {
		return err
	}

	notifiers, err := buildNotifiers(cfg.Notify)
	if err != nil {
		return err
	}

	var sapClient *sap.Client
	if cfg.SAP.Enabled() {
		sapClient = sap.NewClient(ctx, cfg.SAP, sap.ClientOpts{Logger: logger.WithPrefix("sap")})
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := sched.Run(ctx); err != nil {
			logger.Error("scheduler stopped", "err", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := refreshOnGroupChange(ctx, gormDB, board, cfg.Schedule, logger); err != nil {
			logger.Error("board refresh stopped", "err", err)
		}
	}()
	if len(notifiers) > 0 {
		feed, err := changefeed.Watch(ctx, gormDB, changefeed.WatchOpts{
			Interval: cfg.Schedule.PollInterval,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			notify.Relay(ctx, feed, notifiers, logger.WithPrefix("notify"))
		}()
		for _, n := range notifiers {
			logger.Info("notifications enabled", "channel", n.Name())
		}
	}

	err = dashboard.Start(ctx, dashboard.StartOpts{
		DB:           gormDB,
		Host:         cfg.Dashboard.Host,
		Port:         cfg.Dashboard.Port,
		Board:        board,
		SAP:          sapClient,
		Location:     loc,
		PollInterval: cfg.Schedule.PollInterval,
		Logger:       logger.WithPrefix("dashboard"),
		Out:          cmd.OutOrStdout(),
	})
	cancel()
	wg.Wait()
	return err
}

// refreshOnGroupChange reloads the board's groups whenever a group or
// center is written by anyone, so rows and filter options stay current.
func refreshOnGroupChange(ctx context.Context, db *gorm.DB, board *planner.Board, sched config.ScheduleConfig, logger *log.Logger) error {
	feed, err := changefeed.Watch(ctx, db, changefeed.WatchOpts{
		Interval: sched.PollInterval,
		Tables:   []string{models.AssetGroup{}.TableName(), models.LocationCenter{}.TableName()},
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	for range feed {
		if err := board.Refresh(ctx, db); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("board refresh failed", "err", err)
		}
	}
	return nil
}

// buildNotifiers creates a notifier per configured channel.
func buildNotifiers(cfg config.NotifyConfig) ([]notify.Notifier, error) {
	var out []notify.Notifier
	if cfg.Slack != nil {
		n, err := slack.New(slack.Opts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if cfg.Discord != nil {
		n, err := discord.New(discord.Opts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
