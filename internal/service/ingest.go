// ingest.go — чтение табличного файла в Row Store (replace-on-read).
// Повторное чтение файла полностью заменяет поколение строк листа:
// старые строки помечаются удалёнными системным актором, новые
// вставляются с version = 1. Оба шага выполняются в одной транзакции.
package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xuri/excelize/v2"

	"github.com/bigkaa/sheetstore/internal/domain/model"
	"github.com/bigkaa/sheetstore/internal/repository"
	"github.com/bigkaa/sheetstore/internal/storage/filestore"
)

var ingestedRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ss_ingested_rows_total",
	Help: "Общее количество строк, загруженных из файлов.",
})

// SheetIngest — итог загрузки одного листа.
type SheetIngest struct {
	SheetName    string `json:"sheetName"`
	RowsInserted int    `json:"rowsInserted"`
	RowsReplaced int    `json:"rowsReplaced"`
}

// IngestResult — итог чтения файла в Row Store.
type IngestResult struct {
	FileName string        `json:"fileName"`
	Sheets   []SheetIngest `json:"sheets"`
}

// parsedSheet — промежуточное представление разобранного листа.
type parsedSheet struct {
	name string
	rows []*model.SheetRow
}

// IngestService читает табличные файлы в Row Store.
type IngestService struct {
	fileRepo  repository.FileRegistryRepository
	txRunner  *repository.TxRunner
	fileStore *filestore.FileStore
	logger    *slog.Logger
}

// NewIngestService создаёт сервис загрузки.
func NewIngestService(
	fileRepo repository.FileRegistryRepository,
	txRunner *repository.TxRunner,
	fileStore *filestore.FileStore,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		fileRepo:  fileRepo,
		txRunner:  txRunner,
		fileStore: fileStore,
		logger:    logger.With(slog.String("component", "ingest_service")),
	}
}

// ReadFile разбирает физический файл из реестра и заменяет строки
// каждого прочитанного листа в Row Store.
func (s *IngestService) ReadFile(ctx context.Context, fileName string) (*IngestResult, error) {
	record, err := s.fileRepo.GetByName(ctx, fileName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %q", ErrNotFound, fileName)
		}
		return nil, fmt.Errorf("получение файла из реестра: %w", err)
	}

	if !s.fileStore.Exists(record.StoragePath) {
		return nil, fmt.Errorf("%w: физический файл %q отсутствует на диске", ErrNotFound, fileName)
	}

	sheets, err := parseWorkbook(s.fileStore.FullPath(record.StoragePath), fileName)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{FileName: fileName}

	// Удаление старого поколения и вставка нового — одна транзакция:
	// промежуточное состояние с пустым листом не наблюдаемо.
	err = s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		rowRepo := repository.NewRowRepository(tx)
		for _, sheet := range sheets {
			replaced, err := rowRepo.SoftDeleteSheet(ctx, fileName, sheet.name, SystemActor)
			if err != nil {
				return fmt.Errorf("замена листа %q: %w", sheet.name, err)
			}
			if err := rowRepo.CreateBatch(ctx, sheet.rows); err != nil {
				return fmt.Errorf("вставка строк листа %q: %w", sheet.name, err)
			}
			result.Sheets = append(result.Sheets, SheetIngest{
				SheetName:    sheet.name,
				RowsInserted: len(sheet.rows),
				RowsReplaced: replaced,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, sheet := range result.Sheets {
		ingestedRowsTotal.Add(float64(sheet.RowsInserted))
		s.logger.Info("Лист загружен",
			slog.String("file", fileName),
			slog.String("sheet", sheet.SheetName),
			slog.Int("inserted", sheet.RowsInserted),
			slog.Int("replaced", sheet.RowsReplaced),
		)
	}

	return result, nil
}

// SheetNames возвращает имена листов физического файла.
func (s *IngestService) SheetNames(ctx context.Context, fileName string) ([]string, error) {
	record, err := s.fileRepo.GetByName(ctx, fileName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %q", ErrNotFound, fileName)
		}
		return nil, fmt.Errorf("получение файла из реестра: %w", err)
	}

	switch strings.ToLower(filepath.Ext(record.OriginalName)) {
	case ".csv":
		return []string{csvSheetName}, nil
	default:
		wb, err := excelize.OpenFile(s.fileStore.FullPath(record.StoragePath))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		defer wb.Close() //nolint:errcheck
		return wb.GetSheetList(), nil
	}
}

// csvSheetName — имя листа для CSV-файлов (одного листа).
const csvSheetName = "Sheet1"

// parseWorkbook разбирает файл в набор листов со строками Row Store.
// Первая строка каждого листа — заголовок, в данные не попадает.
// Полностью пустые (после TrimSpace) строки пропускаются.
func parseWorkbook(path, fileName string) ([]parsedSheet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSV(path, fileName)
	case ".xlsx":
		return parseExcel(path, fileName)
	default:
		return nil, fmt.Errorf("%w: неподдерживаемое расширение файла %q", ErrValidation, filepath.Ext(path))
	}
}

func parseExcel(path, fileName string) ([]parsedSheet, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: открытие книги: %v", ErrParse, err)
	}
	defer wb.Close() //nolint:errcheck

	var sheets []parsedSheet
	for _, sheetName := range wb.GetSheetList() {
		raw, err := wb.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("%w: чтение листа %q: %v", ErrParse, sheetName, err)
		}
		sheets = append(sheets, buildSheet(fileName, sheetName, raw))
	}
	return sheets, nil
}

func parseCSV(path, fileName string) ([]parsedSheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: открытие файла: %v", ErrParse, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // строки разной длины допустимы

	var raw [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: разбор CSV: %v", ErrParse, err)
		}
		raw = append(raw, record)
	}

	return []parsedSheet{buildSheet(fileName, csvSheetName, raw)}, nil
}

// buildSheet превращает сырые ячейки листа в строки Row Store.
// raw[0] — заголовок; row_index строки данных — её номер в листе
// (1-based, первая строка данных имеет индекс 2).
func buildSheet(fileName, sheetName string, raw [][]string) parsedSheet {
	sheet := parsedSheet{name: sheetName}
	if len(raw) == 0 {
		return sheet
	}

	headers := raw[0]
	for i, cells := range raw[1:] {
		if blankRow(cells) {
			continue
		}
		columns := make(map[string]string, len(cells))
		for j, cell := range cells {
			columns[columnName(headers, j)] = cell
		}
		sheet.rows = append(sheet.rows, &model.SheetRow{
			FileName:  fileName,
			SheetName: sheetName,
			RowIndex:  i + 2,
			Columns:   columns,
			Version:   1,
		})
	}
	return sheet
}

// columnName возвращает имя колонки из заголовка; пустой заголовок
// заменяется на Column{n} (n — номер колонки, 1-based).
func columnName(headers []string, idx int) string {
	if idx < len(headers) {
		if name := strings.TrimSpace(headers[idx]); name != "" {
			return name
		}
	}
	return fmt.Sprintf("Column%d", idx+1)
}

func blankRow(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
