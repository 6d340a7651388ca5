package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arkade-labs/guildxp/internal/database"
	"github.com/arkade-labs/guildxp/internal/discord"
	"github.com/arkade-labs/guildxp/internal/engine"
	apperrors "github.com/arkade-labs/guildxp/internal/errors"
	"github.com/arkade-labs/guildxp/internal/guildconfig"
	"github.com/arkade-labs/guildxp/internal/health"
	"github.com/arkade-labs/guildxp/internal/jobs"
	"github.com/arkade-labs/guildxp/internal/jobs/handlers"
	"github.com/arkade-labs/guildxp/internal/ledger"
	"github.com/arkade-labs/guildxp/internal/lifecycle"
	"github.com/arkade-labs/guildxp/internal/notify"
	"github.com/arkade-labs/guildxp/internal/repository"
	"github.com/arkade-labs/guildxp/internal/voice"
	"github.com/arkade-labs/guildxp/pkg/config"
	"github.com/arkade-labs/guildxp/pkg/graceful"
	"github.com/arkade-labs/guildxp/pkg/logger"
	"github.com/arkade-labs/guildxp/pkg/metrics"
	redispkg "github.com/arkade-labs/guildxp/pkg/redis"

	_ "github.com/lib/pq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			slog.Error("failed to initialize sentry", slog.Any("error", err))
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log := logger.New(*cfg)
	log.Info("starting guildxp",
		slog.String("env", cfg.AppEnv),
		slog.String("http_port", cfg.HTTP.Port),
		slog.Int64("guild_id", cfg.Discord.GuildID),
	)

	config.Watch(v,
		func(updated *config.Config) {
			log.Info("configuration file changed; restart to apply structural changes")
		},
		func(err error) {
			log.Warn("configuration reload failed", slog.Any("error", err))
		},
	)

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to ping database", slog.Any("error", err))
		os.Exit(1)
	}

	migrationsDir := cfg.Database.MigrationsDir
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}
	if err := database.NewMigrator(db, log).ApplyDir(ctx, migrationsDir); err != nil {
		log.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := redispkg.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}

	activityRepo := repository.NewActivityRepository(db, log)
	progressionRepo := repository.NewProgressionRepository(db, log)
	economyRepo := repository.NewEconomyRepository(db, log)
	achievementRepo := repository.NewAchievementRepository(db, log)
	socialRepo := repository.NewSocialRepository(db, log)
	historyRepo := repository.NewHistoryRepository(db, log)

	led := ledger.New(activityRepo, progressionRepo, economyRepo, log)
	guilds := guildconfig.NewService(db, redisClient.Client, log)

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram, log)
		if err != nil {
			log.Error("failed to create telegram notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = tg
	}

	bot, err := discord.New(cfg.Discord, log)
	if err != nil {
		log.Error("failed to create discord bot", slog.Any("error", err))
		os.Exit(1)
	}

	eng := engine.New(engine.Params{
		Config:          cfg.Activity,
		GuildID:         cfg.Discord.GuildID,
		Ledger:          led,
		AchievementRepo: achievementRepo,
		SocialRepo:      socialRepo,
		Provider:        discord.NewRoleProvider(bot.Session(), log),
		Guilds:          guilds,
		Cooldowns:       redisClient,
		Notifier:        notifier,
		ErrHandler:      apperrors.NewHandler(log, cfg.Sentry.Enabled),
		Log:             log,
	})

	tracker := voice.NewTracker(eng.RecordVoiceMinutes, log)
	bot.Bind(eng, tracker)

	if err := eng.Start(ctx); err != nil {
		log.Error("failed to start engine", slog.Any("error", err))
		os.Exit(1)
	}

	if err := bot.Start(); err != nil {
		log.Error("failed to open discord gateway", slog.Any("error", err))
		os.Exit(1)
	}

	// Background loops get their own cancel so shutdown can stop them before
	// the final voice flush runs.
	loopCtx, stopLoops := context.WithCancel(context.Background())
	defer stopLoops()

	reconciler := voice.NewReconciler(tracker, bot, cfg.Activity.ReconcileInterval, log)
	go reconciler.Run(loopCtx)
	go metrics.NewSessionCollector(tracker).Run(loopCtx)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	jobsClient := jobs.NewClient(redisOpt, log)

	worker := jobs.NewWorker(redisOpt, cfg.Jobs.Queues, log)
	worker.RegisterHandler(jobs.TaskTypeDailySnapshot, handlers.NewSnapshotHandler(historyRepo, log))
	worker.RegisterHandler(jobs.TaskTypeDailyReport, handlers.NewReportHandler(historyRepo, activityRepo, guilds, notifier, log))
	go func() {
		if err := worker.Run(); err != nil {
			log.Error("jobs worker stopped", slog.Any("error", err))
		}
	}()

	scheduler := jobs.NewScheduler(redisOpt, cfg.Jobs, cfg.Discord.GuildID, log)
	if err := scheduler.RegisterTasks(); err != nil {
		log.Error("failed to register scheduled tasks", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Run()

	// Snapshot on boot covers a midnight run missed while the process was
	// down; the handler upserts per day, so a duplicate run is harmless.
	if task, err := jobs.NewDailySnapshotTask(cfg.Discord.GuildID); err == nil {
		if _, err := jobsClient.Enqueue(ctx, task, asynq.Queue(jobs.QueueLow)); err != nil {
			log.Warn("failed to enqueue catch-up snapshot", slog.Any("error", err))
		}
	}

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(redisClient.Client))
	checker.AddCheck("discord", health.NewDiscordChecker(bot.Session()))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthHandler(checker))

	server := graceful.NewServer(log, cfg.HTTP.Port, logger.Middleware(mux), cfg.HTTP.ShutdownTimeout)
	go func() {
		if err := server.ListenAndServe(ctx); err != nil {
			log.Error("http server stopped", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	// Hooks run in registration order. The gateway closes before the flush
	// so no new voice events land mid-flush, and the reconciler stops before
	// the flush so a tick cannot credit the same minutes twice. Storage
	// closes last because the flush still writes through it.
	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("jobs scheduler", func(context.Context) error {
		scheduler.Shutdown()
		return nil
	})
	shutdown.Register("jobs worker", func(context.Context) error {
		worker.Shutdown()
		return nil
	})
	shutdown.Register("jobs client", func(context.Context) error {
		return jobsClient.Close()
	})
	shutdown.Register("discord gateway", func(context.Context) error {
		return bot.Stop()
	})
	shutdown.Register("background loops", func(context.Context) error {
		stopLoops()
		return nil
	})
	shutdown.Register("voice flush", func(ctx context.Context) error {
		tracker.FlushAll(ctx)
		return nil
	})
	shutdown.Register("redis", func(context.Context) error {
		return redisClient.Close()
	})
	shutdown.Register("database", func(context.Context) error {
		return db.Close()
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("guildxp stopped")
}

func healthHandler(checker *health.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := checker.Check(r.Context())

		status := http.StatusOK
		for _, state := range results {
			if state != "OK" {
				status = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(results)
	}
}
