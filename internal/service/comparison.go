// comparison.go — движок сравнения двух наборов строк.
// Строки сопоставляются исключительно по row_index; контентного или
// нечёткого сопоставления нет. Сравнение читает только Row Store и
// никогда не обращается к исходному файлу таблицы.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/sheetstore/internal/domain/model"
	"github.com/bigkaa/sheetstore/internal/repository"
)

// Prometheus-метрики сравнений.
var (
	comparisonsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ss_comparisons_total",
		Help: "Общее количество выполненных сравнений.",
	})
	comparisonDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ss_comparison_duration_seconds",
		Help:    "Длительность сравнений в секундах.",
		Buckets: prometheus.DefBuckets,
	})
)

// ComparisonService — сервис сравнения наборов строк и истории изменений.
type ComparisonService struct {
	rowRepo  repository.RowRepository
	fileRepo repository.FileRegistryRepository
	logger   *slog.Logger
}

// NewComparisonService создаёт сервис сравнения.
func NewComparisonService(
	rowRepo repository.RowRepository,
	fileRepo repository.FileRegistryRepository,
	logger *slog.Logger,
) *ComparisonService {
	return &ComparisonService{
		rowRepo:  rowRepo,
		fileRepo: fileRepo,
		logger:   logger.With(slog.String("component", "comparison_service")),
	}
}

// CompareFiles сравнивает живые строки двух файлов поколоночно.
// sheetName опционален ("" — все листы).
func (s *ComparisonService) CompareFiles(ctx context.Context, fileName1, fileName2, sheetName string) (*model.ComparisonResult, error) {
	start := time.Now()

	for _, name := range []string{fileName1, fileName2} {
		if _, err := s.fileRepo.GetByName(ctx, name); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: файл %q", ErrNotFound, name)
			}
			return nil, fmt.Errorf("проверка файла: %w", err)
		}
	}

	rowsA, err := s.rowRepo.ListLive(ctx, fileName1, sheetName, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("чтение строк %q: %w", fileName1, err)
	}
	rowsB, err := s.rowRepo.ListLive(ctx, fileName2, sheetName, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("чтение строк %q: %w", fileName2, err)
	}

	result := CompareRowSets(rowsA, rowsB, fileName1, fileName2)

	comparisonsTotal.Inc()
	comparisonDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("Сравнение файлов выполнено",
		slog.String("file1", fileName1),
		slog.String("file2", fileName2),
		slog.Int("differences", len(result.Differences)),
	)

	return result, nil
}

// CompareVersions сравнивает два временных среза одного файла.
//
// Срез на момент t: created_at <= t и (modified_at IS NULL или
// modified_at <= t) — реконструкция по меткам времени, не настоящий
// исторический снимок. В отличие от CompareFiles, используется более
// простая проверка равенства целой строки, без поколоночного диффа.
func (s *ComparisonService) CompareVersions(ctx context.Context, fileName string, dateA, dateB time.Time, sheetName string) (*model.ComparisonResult, error) {
	start := time.Now()

	if _, err := s.fileRepo.GetByName(ctx, fileName); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %q", ErrNotFound, fileName)
		}
		return nil, fmt.Errorf("проверка файла: %w", err)
	}

	rowsA, err := s.rowRepo.ListAsOf(ctx, fileName, sheetName, dateA)
	if err != nil {
		return nil, fmt.Errorf("чтение среза на %s: %w", dateA.Format(time.RFC3339), err)
	}
	rowsB, err := s.rowRepo.ListAsOf(ctx, fileName, sheetName, dateB)
	if err != nil {
		return nil, fmt.Errorf("чтение среза на %s: %w", dateB.Format(time.RFC3339), err)
	}

	sourceA := fmt.Sprintf("%s@%s", fileName, dateA.Format(time.RFC3339))
	sourceB := fmt.Sprintf("%s@%s", fileName, dateB.Format(time.RFC3339))
	result := compareRowSetsWholeRow(rowsA, rowsB, sourceA, sourceB)

	comparisonsTotal.Inc()
	comparisonDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("Сравнение версий выполнено",
		slog.String("file", fileName),
		slog.Int("differences", len(result.Differences)),
	)

	return result, nil
}

// ListChanges возвращает живые строки файла, изменённые в диапазоне [from, to].
func (s *ComparisonService) ListChanges(ctx context.Context, fileName, sheetName string, from, to time.Time) ([]*model.SheetRow, error) {
	if _, err := s.fileRepo.GetByName(ctx, fileName); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %q", ErrNotFound, fileName)
		}
		return nil, fmt.Errorf("проверка файла: %w", err)
	}

	rows, err := s.rowRepo.ListModifiedBetween(ctx, fileName, sheetName, from, to)
	if err != nil {
		return nil, fmt.Errorf("получение изменённых строк: %w", err)
	}
	return rows, nil
}

// FileHistory возвращает метаданные изменений всех живых строк файла.
func (s *ComparisonService) FileHistory(ctx context.Context, fileName string) ([]*model.RowChangeInfo, error) {
	if _, err := s.fileRepo.GetByName(ctx, fileName); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %q", ErrNotFound, fileName)
		}
		return nil, fmt.Errorf("проверка файла: %w", err)
	}

	info, err := s.rowRepo.ListChangeInfo(ctx, fileName)
	if err != nil {
		return nil, fmt.Errorf("получение истории файла: %w", err)
	}
	return info, nil
}

// RowHistory возвращает все сохранённые поколения, разделяющие
// (file, sheet, row_index) указанной строки, включая удалённые.
func (s *ComparisonService) RowHistory(ctx context.Context, rowID int64) ([]*model.SheetRow, error) {
	rows, err := s.rowRepo.ListRowVersions(ctx, rowID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: строка %d", ErrNotFound, rowID)
		}
		return nil, fmt.Errorf("получение версий строки: %w", err)
	}
	return rows, nil
}

// CompareRowSets выполняет поколоночное сравнение двух наборов строк.
//
// Правила:
//   - строка A без пары в B → Deleted уровня целой строки;
//   - строка B без пары в A → Added уровня целой строки;
//   - пара по индексу → сравнение по колонкам карты A: колонка,
//     отсутствующая в B или с другим значением — Modified. Колонки,
//     присутствующие только в B, различиями не считаются (цикл ведёт
//     сторона A).
//
// Порядок различий: порядок строк A, затем строки только из B.
// Дублирующиеся индексы внутри набора: учитывается только первое
// вхождение.
func CompareRowSets(rowsA, rowsB []*model.SheetRow, sourceA, sourceB string) *model.ComparisonResult {
	return compareRowSets(rowsA, rowsB, sourceA, sourceB, true)
}

func compareRowSetsWholeRow(rowsA, rowsB []*model.SheetRow, sourceA, sourceB string) *model.ComparisonResult {
	return compareRowSets(rowsA, rowsB, sourceA, sourceB, false)
}

func compareRowSets(rowsA, rowsB []*model.SheetRow, sourceA, sourceB string, perColumn bool) *model.ComparisonResult {
	byIndexB := make(map[int]*model.SheetRow, len(rowsB))
	for _, row := range rowsB {
		if _, ok := byIndexB[row.RowIndex]; !ok {
			byIndexB[row.RowIndex] = row
		}
	}

	var diffs []model.DataDifference
	seenA := make(map[int]bool, len(rowsA))

	for _, rowA := range rowsA {
		if seenA[rowA.RowIndex] {
			continue
		}
		seenA[rowA.RowIndex] = true

		rowB, ok := byIndexB[rowA.RowIndex]
		if !ok {
			old := serializeRow(rowA.Columns)
			diffs = append(diffs, model.DataDifference{
				RowIndex:   rowA.RowIndex,
				ColumnName: model.EntireRowColumn,
				DiffType:   model.DiffDeleted,
				OldValue:   &old,
			})
			continue
		}

		if perColumn {
			diffs = append(diffs, compareColumns(rowA, rowB)...)
		} else if serializeRow(rowA.Columns) != serializeRow(rowB.Columns) {
			old := serializeRow(rowA.Columns)
			newVal := serializeRow(rowB.Columns)
			diffs = append(diffs, model.DataDifference{
				RowIndex:   rowA.RowIndex,
				ColumnName: model.EntireRowColumn,
				DiffType:   model.DiffModified,
				OldValue:   &old,
				NewValue:   &newVal,
			})
		}
	}

	// Строки, присутствующие только в B.
	seenB := make(map[int]bool, len(rowsB))
	for _, rowB := range rowsB {
		if seenB[rowB.RowIndex] || seenA[rowB.RowIndex] {
			continue
		}
		seenB[rowB.RowIndex] = true

		newVal := serializeRow(rowB.Columns)
		diffs = append(diffs, model.DataDifference{
			RowIndex:   rowB.RowIndex,
			ColumnName: model.EntireRowColumn,
			DiffType:   model.DiffAdded,
			NewValue:   &newVal,
		})
	}

	return &model.ComparisonResult{
		ID:          uuid.New().String(),
		SourceA:     sourceA,
		SourceB:     sourceB,
		ComparedAt:  time.Now().UTC(),
		Differences: diffs,
		Summary:     summarize(len(rowsA), len(rowsB), diffs),
	}
}

// compareColumns сравнивает пару строк по колонкам карты A.
// Колонки перебираются в отсортированном порядке имён — результат
// детерминирован независимо от порядка ключей карты.
func compareColumns(rowA, rowB *model.SheetRow) []model.DataDifference {
	names := make([]string, 0, len(rowA.Columns))
	for name := range rowA.Columns {
		names = append(names, name)
	}
	sort.Strings(names)

	var diffs []model.DataDifference
	for _, name := range names {
		oldVal := rowA.Columns[name]
		newVal, ok := rowB.Columns[name]
		if !ok {
			old := oldVal
			diffs = append(diffs, model.DataDifference{
				RowIndex:   rowA.RowIndex,
				ColumnName: name,
				DiffType:   model.DiffModified,
				OldValue:   &old,
			})
			continue
		}
		if oldVal != newVal {
			old, newV := oldVal, newVal
			diffs = append(diffs, model.DataDifference{
				RowIndex:   rowA.RowIndex,
				ColumnName: name,
				DiffType:   model.DiffModified,
				OldValue:   &old,
				NewValue:   &newV,
			})
		}
	}
	return diffs
}

// summarize считает итоговые счётчики.
// unchangedRows = totalRows − число затронутых индексов; формула
// сознательно не ограничена нулём снизу.
func summarize(lenA, lenB int, diffs []model.DataDifference) model.ComparisonSummary {
	summary := model.ComparisonSummary{
		TotalRows: max(lenA, lenB),
	}

	touched := make(map[int]bool)
	for _, d := range diffs {
		touched[d.RowIndex] = true
		switch d.DiffType {
		case model.DiffAdded:
			summary.AddedRows++
		case model.DiffDeleted:
			summary.DeletedRows++
		case model.DiffModified:
			summary.ModifiedRows++
		}
	}
	summary.UnchangedRows = summary.TotalRows - len(touched)

	return summary
}

// serializeRow сериализует карту колонок в канонический JSON
// (encoding/json сортирует ключи карт).
func serializeRow(columns map[string]string) string {
	data, err := json.Marshal(columns)
	if err != nil {
		// map[string]string не может не сериализоваться.
		return ""
	}
	return string(data)
}
