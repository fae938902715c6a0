// Package main - точка входа HTTP API Campus Course Hub.
//
// Сервер поднимает полную цепочку: конфигурация, PostgreSQL с миграциями,
// опциональный Redis (кеш итогов и шина событий), обработчики команд и
// запросов, HTTP-сервер с middleware-цепочкой и корректное завершение
// по сигналу.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries)
// - Infrastructure: реализация репозиториев, кеш, шина событий
// - Interface: HTTP handlers
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/campus-hub/campus-course-hub/config"
	"github.com/campus-hub/campus-course-hub/internal/application/command"
	"github.com/campus-hub/campus-course-hub/internal/application/query"
	"github.com/campus-hub/campus-course-hub/internal/domain/course"
	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
	"github.com/campus-hub/campus-course-hub/internal/infrastructure/messaging"
	"github.com/campus-hub/campus-course-hub/internal/infrastructure/persistence/postgres"
	"github.com/campus-hub/campus-course-hub/internal/infrastructure/persistence/redis"
	"github.com/campus-hub/campus-course-hub/internal/infrastructure/service"
	httpserver "github.com/campus-hub/campus-course-hub/internal/interface/http"
	"github.com/campus-hub/campus-course-hub/pkg/logger"
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
	httpLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

	log.Info("starting Campus Course Hub API",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
	)

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
	log.Info("database connection established")

	if cfg.Database.MigrateOnStart {
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS: КЕШ ИТОГОВ (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var finalCache *redis.FinalGradeCache

	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			finalCache = redis.NewFinalGradeCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ШИНА СОБЫТИЙ И ПОДПИСЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log

	var eventBus shared.EventBus
	var closeBus func() error

	if redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redis.NewPubSubAdapter(redisCache),
			LocalBusConfig: busConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start event bus: %w", err)
		}
		eventBus = redisBus
		closeBus = redisBus.Close
	} else {
		localBus := messaging.NewInMemoryEventBus(busConfig)
		eventBus = localBus
		closeBus = localBus.Close
	}
	defer func() {
		if err := closeBus(); err != nil {
			log.Warn("event bus close failed", "error", err)
		}
	}()

	if finalCache != nil {
		invalidator := service.NewCacheInvalidator(finalCache, log)
		if err := invalidator.Register(eventBus); err != nil {
			return fmt.Errorf("failed to register cache invalidator: %w", err)
		}
	}

	// Журналирующий подписчик: каждое доменное событие попадает в лог.
	_ = eventBus.SubscribeAll(func(event shared.Event) error {
		log.Debug("domain event",
			"type", string(event.EventType()),
			"aggregate_id", event.AggregateID(),
		)
		return nil
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 5. РЕПОЗИТОРИИ И ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	courseRepo := postgres.NewCourseRepository(dbConn)
	uowFactory := postgres.NewUnitOfWorkFactory(dbConn)
	apiKeyRepo := postgres.NewAPIKeyRepository(dbConn)

	cache := courseFinalCacheOrNil(finalCache)

	deps := httpserver.Dependencies{
		CreateCourse:     command.NewCreateCourseHandler(uowFactory, eventBus),
		SetCoordinator:   command.NewSetCoordinatorHandler(uowFactory, eventBus),
		CloseCourse:      command.NewCloseCourseHandler(uowFactory, eventBus),
		AddTeacher:       command.NewAddTeacherHandler(uowFactory, eventBus),
		EnrollStudent:    command.NewEnrollStudentHandler(uowFactory, eventBus),
		CreateEvaluation: command.NewCreateEvaluationHandler(uowFactory, eventBus),
		SetGrade:         command.NewSetGradeHandler(uowFactory, eventBus),

		GetOwnRecord: query.NewGetOwnRecordHandler(courseRepo),
		GetOwnGrade:  query.NewGetOwnGradeHandler(courseRepo),
		ComputeFinal: query.NewComputeFinalHandler(courseRepo, cache),
		GetCounts:    query.NewGetCountsHandler(courseRepo, cache),

		Logger: httpLog,
		HealthCheckers: map[string]httpserver.HealthChecker{
			"postgres": dbConn.Ping,
		},
	}

	if !cfg.Auth.Disabled {
		deps.Authenticator = httpserver.NewAPIKeyAuthenticator(apiKeyRepo)
	}

	if redisCache != nil {
		deps.HealthCheckers["redis"] = redisCache.Ping
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP-СЕРВЕР И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	server := httpserver.NewServer(serverCfg, deps)
	serverErr := server.StartAsync()

	log.Info("Campus Course Hub API is running", "address", serverCfg.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// courseFinalCacheOrNil возвращает nil-интерфейс при отсутствии Redis,
// чтобы обработчики запросов не получили типизированный nil.
func courseFinalCacheOrNil(fc *redis.FinalGradeCache) course.FinalCache {
	if fc == nil {
		return nil
	}
	return fc
}

// setupSlog настраивает структурированное логирование инфраструктуры.
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
