package model

import "time"

// Типы различий между двумя наборами строк.
const (
	DiffAdded    = "Added"
	DiffModified = "Modified"
	DiffDeleted  = "Deleted"
)

// EntireRowColumn — маркер различия уровня целой строки
// (строка добавлена или удалена, а не изменена поколоночно).
const EntireRowColumn = "EntireRow"

// DataDifference — одно расхождение между сравниваемыми наборами строк.
type DataDifference struct {
	// RowIndex — индекс строки, к которой относится различие
	RowIndex int `json:"rowIndex"`
	// ColumnName — имя колонки или EntireRowColumn
	ColumnName string `json:"columnName"`
	// DiffType — Added, Modified или Deleted
	DiffType string `json:"differenceType"`
	// OldValue — значение в наборе A (nil для Added)
	OldValue *string `json:"oldValue,omitempty"`
	// NewValue — значение в наборе B (nil для Deleted)
	NewValue *string `json:"newValue,omitempty"`
}

// ComparisonSummary — агрегированные счётчики сравнения.
type ComparisonSummary struct {
	// TotalRows — max(|A|, |B|)
	TotalRows int `json:"totalRows"`
	// ModifiedRows — количество Modified-различий
	ModifiedRows int `json:"modifiedRows"`
	// AddedRows — количество Added-различий
	AddedRows int `json:"addedRows"`
	// DeletedRows — количество Deleted-различий
	DeletedRows int `json:"deletedRows"`
	// UnchangedRows — TotalRows минус число затронутых индексов.
	// Формула сознательно не ограничена нулём снизу.
	UnchangedRows int `json:"unchangedRows"`
}

// ComparisonResult — результат сравнения двух наборов строк.
// Эфемерный: не персистится, принадлежит вызывающему коду.
type ComparisonResult struct {
	// ID — сгенерированный идентификатор результата
	ID string `json:"comparisonId"`
	// SourceA — идентификатор первого набора (имя файла или файл@дата)
	SourceA string `json:"source1"`
	// SourceB — идентификатор второго набора
	SourceB string `json:"source2"`
	// ComparedAt — время выполнения сравнения
	ComparedAt time.Time `json:"comparisonDate"`
	// Differences — упорядоченный список различий
	Differences []DataDifference `json:"differences"`
	// Summary — счётчики
	Summary ComparisonSummary `json:"summary"`
}
