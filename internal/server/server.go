// Пакет server — HTTP-сервер Sheetstore с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/sheetstore/internal/api/handlers"
	"github.com/bigkaa/sheetstore/internal/api/middleware"
	"github.com/bigkaa/sheetstore/internal/config"
)

// Server — HTTP-сервер Sheetstore.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
	// onShutdown вызывается после остановки HTTP-сервера
	// (остановка фоновых запусков ETL).
	onShutdown func()
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// onShutdown может быть nil.
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, onShutdown func()) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.CORS())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Health и metrics — вне /api, проверяются Kubernetes напрямую.
	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	router.Route("/api", func(r chi.Router) {
		r.Route("/excel", func(r chi.Router) {
			r.Post("/upload", handler.UploadFile)
			r.Post("/read/{fileName}", handler.ReadFile)
			r.Get("/data/{fileName}", handler.GetData)
			r.Get("/data/{fileName}/all", handler.GetAllData)
			r.Put("/data", handler.UpdateRow)
			r.Put("/data/bulk", handler.BulkUpdateRows)
			r.Post("/data", handler.AddRow)
			r.Delete("/data/{id}", handler.DeleteRow)
			r.Post("/export", handler.ExportFile)
			r.Get("/sheets/{fileName}", handler.GetSheets)
			r.Delete("/files/{fileName}", handler.DeleteFile)
		})

		r.Get("/files", handler.ListFiles)

		r.Route("/comparison", func(r chi.Router) {
			r.Post("/files", handler.CompareFiles)
			r.Post("/versions", handler.CompareVersions)
			r.Get("/changes/{fileName}", handler.ListChanges)
			r.Get("/history/{fileName}", handler.FileHistory)
			r.Get("/row-history/{rowId}", handler.RowHistory)
		})

		r.Route("/audit", func(r chi.Router) {
			r.Get("/{fileName}", handler.ListFileAudit)
			r.Get("/row/{rowId}", handler.ListRowAudit)
		})

		r.Route("/etl", func(r chi.Router) {
			r.Post("/execute/{packageName}", handler.ExecutePackage)
			r.Get("/status/{executionId}", handler.ExecutionStatus)
			r.Post("/cancel/{executionId}", handler.CancelExecution)
			r.Get("/executions", handler.ListExecutions)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
		onShutdown: onShutdown,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	if s.onShutdown != nil {
		s.onShutdown()
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
