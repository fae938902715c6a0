// Package main - точка входа фонового воркера Campus Course Hub.
//
// Воркер отвечает за периодические задачи:
// - Пересчёт итоговых оценок всех зачисленных студентов
// - Прогрев кеша итогов и счётчиков курсов
//
// Пересчёт идемпотентен: агрегатор итоговой оценки - чистая функция,
// и повторный прогон лишь обновляет TTL закешированных значений.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/campus-hub/campus-course-hub/config"
	"github.com/campus-hub/campus-course-hub/internal/infrastructure/messaging"
	"github.com/campus-hub/campus-course-hub/internal/infrastructure/persistence/postgres"
	"github.com/campus-hub/campus-course-hub/internal/infrastructure/persistence/redis"
	"github.com/campus-hub/campus-course-hub/internal/infrastructure/scheduler"
	"github.com/campus-hub/campus-course-hub/internal/infrastructure/scheduler/jobs"
	"github.com/campus-hub/campus-course-hub/pkg/retry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupSlog(cfg)
	log.Info("starting Campus Course Hub Worker",
		"env", string(cfg.App.Environment),
		"refresh_interval", cfg.Scheduler.RefreshFinalsInterval.String(),
	)

	if !cfg.Scheduler.Enabled {
		return errors.New("scheduler is disabled, nothing to run")
	}
	if cfg.Redis.Disabled {
		return errors.New("worker requires Redis: the refresh job warms the finals cache")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRESQL: ПОДКЛЮЧЕНИЕ И МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	if err := retry.StartupRetrier().Do(ctx, dbConn.Ping); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if cfg.Database.MigrateOnStart {
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	log.Info("database ready")

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS: КЕШ ИТОГОВ
	// ─────────────────────────────────────────────────────────────────────────
	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns

	redisCache, err := redis.NewCache(redisCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisCache.Close()
	log.Info("Redis connection established")

	finalCache := redis.NewFinalGradeCache(redisCache)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ШИНА СОБЫТИЙ
	// Воркер публикует в общий канал, чтобы API-инстансы видели
	// событие пересчёта.
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log

	eventBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         redis.NewPubSubAdapter(redisCache),
		LocalBusConfig: busConfig,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	defer func() {
		if err := eventBus.Close(); err != nil {
			log.Warn("event bus close failed", "error", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПЛАНИРОВЩИК И ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	jobCfg := jobs.DefaultRefreshFinalsConfig()
	jobCfg.CacheTTL = cfg.Redis.FinalTTL
	jobCfg.MaxCourses = cfg.Scheduler.RefreshMaxCourses

	refreshJob := jobs.NewRefreshFinalsJob(
		postgres.NewCourseRepository(dbConn),
		finalCache,
		eventBus,
		log,
		jobCfg,
	)

	schedule, err := scheduler.NewIntervalSchedule(cfg.Scheduler.RefreshFinalsInterval)
	if err != nil {
		return fmt.Errorf("invalid refresh interval: %w", err)
	}
	if err := sched.Register(refreshJob, schedule); err != nil {
		return fmt.Errorf("failed to register job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// Первый прогон сразу: после рестарта кеш пуст.
	if _, err := sched.RunNow(ctx, refreshJob.Name()); err != nil {
		log.Warn("initial finals refresh failed", "error", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Campus Course Hub Worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// setupSlog настраивает структурированное логирование.
func setupSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
