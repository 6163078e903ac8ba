// export.go — выгрузка строк Row Store обратно в xlsx-книгу.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/bigkaa/sheetstore/internal/domain/model"
	"github.com/bigkaa/sheetstore/internal/repository"
)

// ExportRequest — параметры выгрузки.
type ExportRequest struct {
	FileName  string `json:"fileName"`
	SheetName string `json:"sheetName,omitempty"`
}

// ExportService собирает xlsx-книгу из живых строк файла.
type ExportService struct {
	rowRepo  repository.RowRepository
	fileRepo repository.FileRegistryRepository
	logger   *slog.Logger
}

// NewExportService создаёт сервис выгрузки.
func NewExportService(
	rowRepo repository.RowRepository,
	fileRepo repository.FileRegistryRepository,
	logger *slog.Logger,
) *ExportService {
	return &ExportService{
		rowRepo:  rowRepo,
		fileRepo: fileRepo,
		logger:   logger.With(slog.String("component", "export_service")),
	}
}

// Export строит xlsx из живых строк файла (опционально одного листа)
// и возвращает содержимое книги.
// Заголовок каждого листа — объединение имён колонок его строк
// в отсортированном порядке; строки идут по row_index.
func (s *ExportService) Export(ctx context.Context, req ExportRequest) ([]byte, error) {
	if req.FileName == "" {
		return nil, fmt.Errorf("%w: fileName обязателен", ErrValidation)
	}

	if _, err := s.fileRepo.GetByName(ctx, req.FileName); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %q", ErrNotFound, req.FileName)
		}
		return nil, fmt.Errorf("проверка файла: %w", err)
	}

	rows, err := s.rowRepo.ListLive(ctx, req.FileName, req.SheetName, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("чтение строк: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: нет строк для выгрузки", ErrNotFound)
	}

	data, err := buildWorkbook(rows)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Файл выгружен",
		slog.String("file", req.FileName),
		slog.Int("rows", len(rows)),
	)
	return data, nil
}

func buildWorkbook(rows []*model.SheetRow) ([]byte, error) {
	wb := excelize.NewFile()
	defer wb.Close() //nolint:errcheck

	// Группировка строк по листам с сохранением порядка первого появления.
	var sheetOrder []string
	bySheet := make(map[string][]*model.SheetRow)
	for _, row := range rows {
		if _, ok := bySheet[row.SheetName]; !ok {
			sheetOrder = append(sheetOrder, row.SheetName)
		}
		bySheet[row.SheetName] = append(bySheet[row.SheetName], row)
	}

	for i, sheetName := range sheetOrder {
		if i == 0 {
			// Первый лист новой книги переименовываем вместо добавления.
			if err := wb.SetSheetName(wb.GetSheetName(0), sheetName); err != nil {
				return nil, fmt.Errorf("переименование листа: %w", err)
			}
		} else {
			if _, err := wb.NewSheet(sheetName); err != nil {
				return nil, fmt.Errorf("создание листа %q: %w", sheetName, err)
			}
		}
		if err := writeSheet(wb, sheetName, bySheet[sheetName]); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		return nil, fmt.Errorf("запись книги: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(wb *excelize.File, sheetName string, rows []*model.SheetRow) error {
	headers := collectHeaders(rows)

	headerCells := make([]any, len(headers))
	for i, h := range headers {
		headerCells[i] = h
	}
	if err := setRow(wb, sheetName, 1, headerCells); err != nil {
		return err
	}

	for i, row := range rows {
		cells := make([]any, len(headers))
		for j, h := range headers {
			cells[j] = row.Columns[h]
		}
		if err := setRow(wb, sheetName, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

func setRow(wb *excelize.File, sheetName string, rowNum int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("вычисление координат: %w", err)
	}
	if err := wb.SetSheetRow(sheetName, cell, &cells); err != nil {
		return fmt.Errorf("запись строки %d листа %q: %w", rowNum, sheetName, err)
	}
	return nil
}

// collectHeaders возвращает объединение имён колонок строк листа
// в отсортированном порядке.
func collectHeaders(rows []*model.SheetRow) []string {
	seen := make(map[string]bool)
	for _, row := range rows {
		for name := range row.Columns {
			seen[name] = true
		}
	}
	headers := make([]string, 0, len(seen))
	for name := range seen {
		headers = append(headers, name)
	}
	sort.Strings(headers)
	return headers
}
