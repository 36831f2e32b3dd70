// Точка входа File Manager — сервиса очереди загрузки и каталога файлов.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/goartstore/file-manager/internal/api/handlers"
	"github.com/bigkaa/goartstore/file-manager/internal/config"
	"github.com/bigkaa/goartstore/file-manager/internal/server"
	"github.com/bigkaa/goartstore/file-manager/internal/service"
	"github.com/bigkaa/goartstore/file-manager/internal/sim"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/filerecord"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/uploadqueue"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("File Manager запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.Int64("max_upload_size", cfg.MaxUploadSize),
		slog.Float64("failure_rate", cfg.FailureRate),
	)

	// --- Инициализация компонентов ---

	clock := sim.RealClock{}

	// 1. Хранилища
	files := filerecord.New(clock, cfg.StoreLatency, logger)
	if cfg.SeedFile != "" {
		if err := files.LoadFile(cfg.SeedFile); err != nil {
			logger.Error("Ошибка загрузки начального набора записей",
				slog.String("seed_file", cfg.SeedFile),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	} else if err := files.Load(nil); err != nil {
		logger.Error("Ошибка инициализации хранилища записей", slog.String("error", err.Error()))
		os.Exit(1)
	}
	queue := uploadqueue.New(clock, cfg.StoreLatency, logger)

	// 2. Движок загрузки
	random := sim.SystemRandom{}
	var failures service.FailureInjector
	if cfg.FailureRate > 0 {
		failures = service.RandomFailures{Rate: cfg.FailureRate, Random: random}
	}
	events := service.NewEventBroker()
	engine := service.NewUploadEngine(
		queue, files,
		service.NewPlaceholderThumbnails(cfg.ThumbnailBaseURL),
		events, clock, random, failures,
		service.EngineConfig{
			StepInterval:    cfg.StepInterval,
			BaseSpeed:       cfg.BaseSpeed,
			SpeedJitter:     cfg.SpeedJitter,
			ChunkCount:      cfg.ChunkCount,
			MinChunkSize:    cfg.MinChunkSize,
			CompletionGrace: cfg.CompletionGrace,
			BatchRetention:  cfg.BatchRetention,
		},
		logger,
	)

	// 3. Поиск
	cache := service.NewCacheService(cfg.SearchCacheSize, cfg.SearchCacheTTL)
	search := service.NewSearchService(files, cache, cfg.SearchSessionTTL, logger)

	// 4. Фоновые процессы
	ctx := context.Background()
	statsSvc := service.NewStatsService(queue, files, cfg.StatsInterval, logger)
	statsSvc.Start(ctx)

	// 5. Handlers
	policy := service.AcceptPolicy{
		AcceptedTypes: cfg.AcceptedTypes,
		MaxSizeBytes:  cfg.MaxUploadSize,
	}
	apiHandler := handlers.NewAPIHandler(
		handlers.NewFilesHandler(files, search, logger),
		handlers.NewUploadsHandler(engine, policy, cfg.MultipartMemory, cfg.MaxRequestBody, logger),
		handlers.NewEventsHandler(events, cfg.SSEKeepAlive, logger),
		handlers.NewHealthHandler(map[string]handlers.ReadinessChecker{
			"file_records":  files,
			"upload_engine": engine,
		}),
	)

	// 6. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler)
	// SSE-потоки завершаются в начале shutdown, иначе Shutdown ждал бы их до таймаута.
	srv.OnShutdown(events.Close)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	engine.Close()
	statsSvc.Stop()
	events.Close()

	logger.Info("File Manager остановлен")
}
