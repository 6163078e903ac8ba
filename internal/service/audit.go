// audit.go — сервис журнала аудита.
// Запись best-effort: сбой журналирования никогда не откатывает
// уже зафиксированную бизнес-операцию.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/sheetstore/internal/domain/model"
	"github.com/bigkaa/sheetstore/internal/repository"
)

// AuditRecorder — минимальный интерфейс записи аудита для мутирующих сервисов.
type AuditRecorder interface {
	// Record записывает факт мутации. Ошибки подавляются внутри.
	Record(ctx context.Context, e *model.AuditEntry)
}

// AuditService — сервис журнала аудита.
type AuditService struct {
	auditRepo repository.AuditRepository
	logger    *slog.Logger
}

// NewAuditService создаёт сервис журнала аудита.
func NewAuditService(auditRepo repository.AuditRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		auditRepo: auditRepo,
		logger:    logger.With(slog.String("component", "audit_service")),
	}
}

// Record записывает факт мутации в журнал.
// При сбое записи сбой логируется и предпринимается одна попытка записать
// fallback-запись с success=false; её сбой подавляется — документируемая
// операция уже зафиксирована и не может быть откачена журналом.
func (s *AuditService) Record(ctx context.Context, e *model.AuditEntry) {
	if err := s.auditRepo.Append(ctx, e); err != nil {
		s.logger.Warn("Ошибка записи аудита",
			slog.Int64("row_id", e.RowID),
			slog.String("operation", e.Operation),
			slog.String("error", err.Error()),
		)

		fallback := &model.AuditEntry{
			FileName:     e.FileName,
			SheetName:    e.SheetName,
			RowIndex:     e.RowIndex,
			RowID:        e.RowID,
			Operation:    e.Operation,
			Actor:        e.Actor,
			Success:      false,
			ErrorMessage: fmt.Sprintf("ошибка записи аудита: %v", err),
		}
		if err := s.auditRepo.Append(ctx, fallback); err != nil {
			// Вторая попытка тоже не удалась — подавляем.
			s.logger.Error("Fallback-запись аудита не удалась",
				slog.Int64("row_id", e.RowID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	s.logger.Debug("Запись аудита добавлена",
		slog.Int64("row_id", e.RowID),
		slog.String("operation", e.Operation),
		slog.Bool("success", e.Success),
	)
}

// ListByFile возвращает записи аудита файла, новые первыми.
func (s *AuditService) ListByFile(ctx context.Context, fileName string, limit, offset int) ([]*model.AuditEntry, error) {
	entries, err := s.auditRepo.ListByFile(ctx, fileName, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("получение журнала аудита: %w", err)
	}
	return entries, nil
}

// ListByRow возвращает записи аудита строки, старые первыми.
func (s *AuditService) ListByRow(ctx context.Context, rowID int64) ([]*model.AuditEntry, error) {
	entries, err := s.auditRepo.ListByRow(ctx, rowID)
	if err != nil {
		return nil, fmt.Errorf("получение аудита строки: %w", err)
	}
	return entries, nil
}
