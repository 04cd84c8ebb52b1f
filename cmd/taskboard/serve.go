package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"taskboard/internal/auth"
	"taskboard/internal/bot"
	"taskboard/internal/server"
	"taskboard/internal/service"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the Telegram bot and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return runServe(ctx, a)
		},
	}
}

func runServe(ctx context.Context, a *app) error {
	cfg := a.cfg
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	logger := a.logger
	clock := service.SystemClock()

	users := a.userService()
	tasks := service.NewTaskService(a.tasks, a.users, clock, logger)
	trash := service.NewTrashService(a.tasks, clock, cfg.TrashRetention, logger)
	imports := service.NewImportService(a.tasks, a.users, logger)
	recurrence := service.NewRecurrenceService(a.tasks, clock, logger)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	scheduler := service.NewSchedulerService(time.Local, cfg.JobTimeout, logger)
	if cfg.PurgeInterval > 0 {
		if _, err := scheduler.ScheduleInterval("purge-trash", cfg.PurgeInterval, func(ctx context.Context) (int, error) {
			n, err := trash.PurgeExpired(ctx)
			return int(n), err
		}); err != nil {
			return fmt.Errorf("schedule purge: %w", err)
		}
	}
	if cfg.RecurrenceInterval > 0 {
		if _, err := scheduler.ScheduleInterval("spawn-recurring", cfg.RecurrenceInterval, recurrence.SpawnDue); err != nil {
			return fmt.Errorf("schedule recurrence: %w", err)
		}
	}

	var telegramBot *bot.Bot
	if cfg.TelegramToken != "" {
		var err error
		telegramBot, err = bot.New(cfg.TelegramToken, users, tasks, trash, logger)
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}
		reminders := service.NewReminderService(a.tasks, a.users, telegramBot, clock, logger)
		if cfg.ReminderInterval > 0 {
			if _, err := scheduler.ScheduleInterval("reminders", cfg.ReminderInterval, reminders.Dispatch); err != nil {
				return fmt.Errorf("schedule reminders: %w", err)
			}
		}
		if cfg.DigestTime != "" {
			if _, err := scheduler.ScheduleDaily("digest", cfg.DigestTime, reminders.SendDigests); err != nil {
				return fmt.Errorf("schedule digest: %w", err)
			}
		}
	} else {
		logger.Info("TELEGRAM_TOKEN not set, bot and reminders disabled")
	}

	scheduler.Start()
	defer scheduler.Stop()
	logger.Info("scheduler started", "jobs", scheduler.Entries())

	router := server.NewRouter(server.Deps{
		Config: cfg,
		DB:     a.db,
		Redis:  redisClient,
		Tokens: auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Users:  users,
		Tasks:  tasks,
		Trash:  trash,
		Import: imports,
		Logger: logger,
	})

	errCh := make(chan error, 2)
	go func() {
		errCh <- server.Run(ctx, cfg.HTTPAddr, router, logger)
	}()
	if telegramBot != nil {
		go func() {
			errCh <- telegramBot.Start(ctx)
		}()
	}

	workers := 1
	if telegramBot != nil {
		workers++
	}
	var firstErr error
	for i := 0; i < workers; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	logger.Info("shutdown complete")
	return firstErr
}
