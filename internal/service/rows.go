// rows.go — сервис мутаций строк с optimistic concurrency.
// Каждое реальное изменение: новая версия, новая карта колонок,
// метка времени, запись аудита. Конфликты версий повторяются
// с линейным backoff до фиксированного предела.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/sheetstore/internal/domain/model"
	"github.com/bigkaa/sheetstore/internal/repository"
)

// Параметры retry-цикла optimistic concurrency.
const (
	// maxUpdateAttempts — максимум попыток применить обновление.
	maxUpdateAttempts = 3
	// retryBackoffStep — шаг линейного backoff (100ms × номер попытки).
	retryBackoffStep = 100 * time.Millisecond
)

// SystemActor — маркер системных операций (replace-on-read, каскадные удаления).
const SystemActor = "system:reread"

// Пределы пагинации списков.
const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

// Prometheus-метрики мутаций.
var (
	updateRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ss_row_update_retries_total",
		Help: "Количество повторных попыток обновления строки после конфликта версий.",
	})
	updateConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ss_row_update_conflicts_total",
		Help: "Количество обновлений, исчерпавших все попытки.",
	})
)

// BulkUpdateItem — один элемент пакетного обновления.
type BulkUpdateItem struct {
	RowID   int64             `json:"id"`
	Columns map[string]string `json:"rowData"`
}

// BulkUpdateResult — результат одного элемента пакетного обновления.
// Элементы независимы: частичного отката нет.
type BulkUpdateResult struct {
	RowID   int64  `json:"id"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RowService — сервис чтения и мутаций строк.
type RowService struct {
	rowRepo  repository.RowRepository
	fileRepo repository.FileRegistryRepository
	audit    AuditRecorder
	logger   *slog.Logger
}

// NewRowService создаёт сервис строк.
func NewRowService(rowRepo repository.RowRepository, fileRepo repository.FileRegistryRepository, audit AuditRecorder, logger *slog.Logger) *RowService {
	return &RowService{
		rowRepo:  rowRepo,
		fileRepo: fileRepo,
		audit:    audit,
		logger:   logger.With(slog.String("component", "row_service")),
	}
}

// ensureFileActive проверяет наличие активного файла в реестре.
// Чтение строк несуществующего файла — NotFound, а не пустая страница.
func (s *RowService) ensureFileActive(ctx context.Context, fileName string) error {
	if _, err := s.fileRepo.GetByName(ctx, fileName); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: файл %q", ErrNotFound, fileName)
		}
		return fmt.Errorf("получение файла из реестра: %w", err)
	}
	return nil
}

// GetPage возвращает страницу живых строк файла.
// page и pageSize нормализуются: page >= 1, pageSize в [1, 1000], по умолчанию 1/50.
func (s *RowService) GetPage(ctx context.Context, fileName, sheetName string, page, pageSize int) (*model.RowPage, error) {
	if err := s.ensureFileActive(ctx, fileName); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	offset := (page - 1) * pageSize
	rows, err := s.rowRepo.ListLive(ctx, fileName, sheetName, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("получение строк: %w", err)
	}
	total, err := s.rowRepo.CountLive(ctx, fileName, sheetName)
	if err != nil {
		return nil, fmt.Errorf("подсчёт строк: %w", err)
	}

	return &model.RowPage{
		Items:    rows,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  offset+len(rows) < total,
	}, nil
}

// GetAll возвращает все живые строки файла без пагинации.
func (s *RowService) GetAll(ctx context.Context, fileName, sheetName string) ([]*model.SheetRow, error) {
	if err := s.ensureFileActive(ctx, fileName); err != nil {
		return nil, err
	}
	rows, err := s.rowRepo.ListLive(ctx, fileName, sheetName, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("получение строк: %w", err)
	}
	return rows, nil
}

// Update применяет обновление одной строки с retry-циклом optimistic concurrency.
//
// Цикл: загрузка текущей строки → вычисление изменённых колонок →
// no-op short-circuit → запись с проверкой версии. При конфликте версий
// цикл повторяется целиком (строка перечитывается) до maxUpdateAttempts
// попыток с линейным backoff. После исчерпания — ErrConflict.
func (s *RowService) Update(ctx context.Context, rowID int64, columns map[string]string, actx model.AuditContext) (*model.SheetRow, error) {
	var lastErr error
	var lastRow *model.SheetRow

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		if attempt > 1 {
			updateRetriesTotal.Inc()
			// Линейный backoff: 100ms × номер предыдущей попытки.
			select {
			case <-time.After(retryBackoffStep * time.Duration(attempt-1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		row, err := s.applyUpdate(ctx, rowID, columns, actx)
		if err == nil {
			return row, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}

		lastErr = err
		lastRow = row
		s.logger.Debug("Конфликт версий при обновлении строки",
			slog.Int64("row_id", rowID),
			slog.Int("attempt", attempt),
		)
	}

	updateConflictsTotal.Inc()
	s.logger.Warn("Обновление строки исчерпало попытки",
		slog.Int64("row_id", rowID),
		slog.Int("attempts", maxUpdateAttempts),
	)

	// Фиксируем неуспешную попытку в журнале. Координаты строки
	// известны из последней загрузки — запись ищется по файлу и листу.
	entry := &model.AuditEntry{
		RowID:        rowID,
		Operation:    model.AuditOpUpdate,
		Actor:        actx.Actor,
		ClientIP:     actx.ClientIP,
		UserAgent:    actx.UserAgent,
		Reason:       actx.Reason,
		Success:      false,
		ErrorMessage: fmt.Sprintf("конфликт версий после %d попыток: %v", maxUpdateAttempts, lastErr),
	}
	if lastRow != nil {
		entry.FileName = lastRow.FileName
		entry.SheetName = lastRow.SheetName
		entry.RowIndex = lastRow.RowIndex
	}
	s.audit.Record(ctx, entry)

	return nil, ErrConflict
}

// applyUpdate выполняет один проход load-compare-write.
// При конфликте версий возвращает загруженную строку вместе с ошибкой:
// её координаты нужны для записи аудита после исчерпания попыток.
func (s *RowService) applyUpdate(ctx context.Context, rowID int64, columns map[string]string, actx model.AuditContext) (*model.SheetRow, error) {
	row, err := s.rowRepo.GetByID(ctx, rowID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: строка %d", ErrNotFound, rowID)
		}
		return nil, fmt.Errorf("загрузка строки: %w", err)
	}
	if row.IsDeleted {
		return nil, fmt.Errorf("%w: строка %d удалена", ErrInvalidState, rowID)
	}

	changed := changedColumns(row.Columns, columns)
	if len(changed) == 0 {
		// Идемпотентный no-op: версия не растёт, аудит не пишется.
		return row, nil
	}

	oldColumns := row.Columns
	expectedVersion := row.Version
	now := time.Now().UTC()

	row.Columns = columns
	row.ModifiedAt = &now
	row.ModifiedBy = &actx.Actor
	row.Version = expectedVersion + 1

	if err := s.rowRepo.UpdateVersioned(ctx, row, expectedVersion); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return row, err
		}
		return nil, err
	}

	// Аудит после успешной записи. Сбой журнала не откатывает запись.
	s.audit.Record(ctx, &model.AuditEntry{
		FileName:       row.FileName,
		SheetName:      row.SheetName,
		RowIndex:       row.RowIndex,
		RowID:          row.ID,
		Operation:      model.AuditOpUpdate,
		OldValue:       oldColumns,
		NewValue:       columns,
		ChangedColumns: changed,
		Actor:          actx.Actor,
		ClientIP:       actx.ClientIP,
		UserAgent:      actx.UserAgent,
		Reason:         actx.Reason,
		Success:        true,
	})

	s.logger.Info("Строка обновлена",
		slog.Int64("row_id", row.ID),
		slog.Int("version", row.Version),
		slog.Any("changed_columns", changed),
	)

	return row, nil
}

// BulkUpdate применяет обновления последовательно, по одному.
// Успех и неуспех элементов независимы, частичного отката нет.
func (s *RowService) BulkUpdate(ctx context.Context, items []BulkUpdateItem, actx model.AuditContext) []BulkUpdateResult {
	results := make([]BulkUpdateResult, 0, len(items))
	for _, item := range items {
		_, err := s.Update(ctx, item.RowID, item.Columns, actx)
		res := BulkUpdateResult{RowID: item.RowID, Success: err == nil}
		if err != nil {
			res.Message = err.Error()
		}
		results = append(results, res)
	}
	return results
}

// Add создаёт новую строку файла+листа с индексом max+1.
func (s *RowService) Add(ctx context.Context, fileName, sheetName string, columns map[string]string, actx model.AuditContext) (*model.SheetRow, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: пустая карта колонок", ErrValidation)
	}

	maxIdx, err := s.rowRepo.MaxRowIndex(ctx, fileName, sheetName)
	if err != nil {
		return nil, fmt.Errorf("получение максимального индекса: %w", err)
	}

	row := &model.SheetRow{
		FileName:  fileName,
		SheetName: sheetName,
		RowIndex:  maxIdx + 1,
		Columns:   columns,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.rowRepo.Create(ctx, row); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &model.AuditEntry{
		FileName:       row.FileName,
		SheetName:      row.SheetName,
		RowIndex:       row.RowIndex,
		RowID:          row.ID,
		Operation:      model.AuditOpCreate,
		NewValue:       columns,
		ChangedColumns: sortedKeys(columns),
		Actor:          actx.Actor,
		ClientIP:       actx.ClientIP,
		UserAgent:      actx.UserAgent,
		Reason:         actx.Reason,
		Success:        true,
	})

	s.logger.Info("Строка добавлена",
		slog.Int64("row_id", row.ID),
		slog.String("file", fileName),
		slog.Int("row_index", row.RowIndex),
	)

	return row, nil
}

// Delete выполняет soft delete строки. Повторное удаление идемпотентно.
func (s *RowService) Delete(ctx context.Context, rowID int64, actx model.AuditContext) error {
	row, err := s.rowRepo.GetByID(ctx, rowID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: строка %d", ErrNotFound, rowID)
		}
		return fmt.Errorf("загрузка строки: %w", err)
	}
	if row.IsDeleted {
		// Уже удалена — no-op без ошибки и без аудита.
		return nil
	}

	if err := s.rowRepo.SoftDelete(ctx, rowID, actx.Actor); err != nil {
		return fmt.Errorf("удаление строки: %w", err)
	}

	s.audit.Record(ctx, &model.AuditEntry{
		FileName:  row.FileName,
		SheetName: row.SheetName,
		RowIndex:  row.RowIndex,
		RowID:     row.ID,
		Operation: model.AuditOpDelete,
		OldValue:  row.Columns,
		Actor:     actx.Actor,
		ClientIP:  actx.ClientIP,
		UserAgent: actx.UserAgent,
		Reason:    actx.Reason,
		Success:   true,
	})

	s.logger.Info("Строка удалена",
		slog.Int64("row_id", rowID),
		slog.String("actor", actx.Actor),
	)

	return nil
}

// changedColumns возвращает отсортированные имена колонок, отличающихся
// в newCols от oldCols. Считаются только ключи newCols: ключ, отсутствующий
// в oldCols или с другим значением — изменение.
func changedColumns(oldCols, newCols map[string]string) []string {
	var changed []string
	for name, newVal := range newCols {
		oldVal, ok := oldCols[name]
		if !ok || oldVal != newVal {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}

// sortedKeys возвращает отсортированные ключи карты колонок.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
