// Точка входа Sheetstore — backend работы с табличными данными.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// инициализирует файловое хранилище и сервисный слой,
// запускает HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/bigkaa/sheetstore/internal/api/handlers"
	"github.com/bigkaa/sheetstore/internal/config"
	"github.com/bigkaa/sheetstore/internal/database"
	"github.com/bigkaa/sheetstore/internal/repository"
	"github.com/bigkaa/sheetstore/internal/server"
	"github.com/bigkaa/sheetstore/internal/service"
	"github.com/bigkaa/sheetstore/internal/storage/filestore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Sheetstore запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Файловое хранилище
	fileStore, err := filestore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации файлового хранилища",
			slog.String("data_dir", cfg.DataDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("Файловое хранилище готово", slog.String("data_dir", cfg.DataDir))

	// 6. Repositories
	rowRepo := repository.NewRowRepository(pool)
	fileRepo := repository.NewFileRegistryRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	etlRepo := repository.NewETLRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 7. Кэш файлового реестра
	fileCache := service.NewFileCache(cfg.CacheSize, cfg.CacheTTL)

	// 8. Services
	auditSvc := service.NewAuditService(auditRepo, logger)
	rowSvc := service.NewRowService(rowRepo, fileRepo, auditSvc, logger)
	fileSvc := service.NewFileService(fileRepo, rowRepo, txRunner, fileStore, fileCache, logger)
	ingestSvc := service.NewIngestService(fileRepo, txRunner, fileStore, logger)
	exportSvc := service.NewExportService(rowRepo, fileRepo, logger)
	comparisonSvc := service.NewComparisonService(rowRepo, fileRepo, logger)
	etlSvc := service.NewETLService(etlRepo, cfg.ETLMinDelay, cfg.ETLMaxDelay, cfg.ETLFailureRate, logger)

	// 9. Readiness checker (PostgreSQL)
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker)

	// 10. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		fileSvc,
		ingestSvc,
		rowSvc,
		exportSvc,
		comparisonSvc,
		auditSvc,
		etlSvc,
		cfg.MaxUploadSize,
		logger,
	)

	// 11. Создание и запуск HTTP-сервера.
	// При остановке сервера прерываем фоновые запуски ETL.
	srv := server.New(cfg, logger, apiHandler, func() {
		logger.Info("Останавливаем фоновые запуски ETL...")
		etlSvc.Shutdown()
	})
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Sheetstore остановлен")
}
