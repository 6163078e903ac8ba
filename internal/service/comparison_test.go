package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/bigkaa/sheetstore/internal/domain/model"
	"github.com/bigkaa/sheetstore/internal/repository"
)

func row(index int, columns map[string]string) *model.SheetRow {
	return &model.SheetRow{
		FileName:  "a.xlsx",
		SheetName: "Sheet1",
		RowIndex:  index,
		Columns:   columns,
		Version:   1,
	}
}

// TestCompareRowSets_Example проверяет сквозной сценарий:
// изменённая колонка, удалённая строка, добавленная строка.
func TestCompareRowSets_Example(t *testing.T) {
	rowsA := []*model.SheetRow{
		row(2, map[string]string{"Name": "Al"}),
		row(3, map[string]string{"Name": "Bo"}),
	}
	rowsB := []*model.SheetRow{
		row(2, map[string]string{"Name": "Alice"}),
		row(4, map[string]string{"Name": "Cy"}),
	}

	result := CompareRowSets(rowsA, rowsB, "a.xlsx", "b.xlsx")

	if len(result.Differences) != 3 {
		t.Fatalf("количество различий = %d, ожидалось 3", len(result.Differences))
	}

	d := result.Differences[0]
	if d.DiffType != model.DiffModified || d.RowIndex != 2 || d.ColumnName != "Name" {
		t.Errorf("различие[0] = %+v, ожидалось Modified строки 2 колонки Name", d)
	}
	if d.OldValue == nil || *d.OldValue != "Al" || d.NewValue == nil || *d.NewValue != "Alice" {
		t.Errorf("различие[0] значения: old=%v new=%v, ожидались Al/Alice", d.OldValue, d.NewValue)
	}

	d = result.Differences[1]
	if d.DiffType != model.DiffDeleted || d.RowIndex != 3 || d.ColumnName != model.EntireRowColumn {
		t.Errorf("различие[1] = %+v, ожидалось Deleted строки 3 (EntireRow)", d)
	}
	if d.NewValue != nil {
		t.Errorf("различие[1] NewValue = %v, ожидался nil", d.NewValue)
	}

	d = result.Differences[2]
	if d.DiffType != model.DiffAdded || d.RowIndex != 4 || d.ColumnName != model.EntireRowColumn {
		t.Errorf("различие[2] = %+v, ожидалось Added строки 4 (EntireRow)", d)
	}
	if d.OldValue != nil {
		t.Errorf("различие[2] OldValue = %v, ожидался nil", d.OldValue)
	}

	sum := result.Summary
	if sum.TotalRows != 2 {
		t.Errorf("TotalRows = %d, ожидался 2 (max(2,2))", sum.TotalRows)
	}
	if sum.ModifiedRows != 1 || sum.AddedRows != 1 || sum.DeletedRows != 1 {
		t.Errorf("счётчики = %d/%d/%d, ожидались 1/1/1", sum.ModifiedRows, sum.AddedRows, sum.DeletedRows)
	}
	// Затронуты индексы 2, 3, 4: формула без нижней границы даёт 2-3 = -1.
	if sum.UnchangedRows != -1 {
		t.Errorf("UnchangedRows = %d, ожидался -1", sum.UnchangedRows)
	}
}

// TestCompareRowSets_Identical проверяет отсутствие различий
// при одинаковых наборах.
func TestCompareRowSets_Identical(t *testing.T) {
	rows := []*model.SheetRow{
		row(2, map[string]string{"Name": "Al", "Age": "30"}),
		row(3, map[string]string{"Name": "Bo", "Age": "25"}),
	}

	result := CompareRowSets(rows, rows, "a.xlsx", "a.xlsx")

	if len(result.Differences) != 0 {
		t.Fatalf("различий = %d, ожидалось 0", len(result.Differences))
	}
	if result.Summary.UnchangedRows != 2 {
		t.Errorf("UnchangedRows = %d, ожидался 2", result.Summary.UnchangedRows)
	}
	if result.Summary.TotalRows != 2 {
		t.Errorf("TotalRows = %d, ожидался 2", result.Summary.TotalRows)
	}
}

// TestCompareRowSets_ColumnOnlyInB проверяет, что колонка, появившаяся
// только в новой строке, различием не считается (цикл ведёт сторона A).
func TestCompareRowSets_ColumnOnlyInB(t *testing.T) {
	rowsA := []*model.SheetRow{row(2, map[string]string{"Name": "Al"})}
	rowsB := []*model.SheetRow{row(2, map[string]string{"Name": "Al", "Age": "30"})}

	result := CompareRowSets(rowsA, rowsB, "a.xlsx", "b.xlsx")

	if len(result.Differences) != 0 {
		t.Fatalf("различий = %d, ожидалось 0 (колонка только в B не учитывается)", len(result.Differences))
	}
}

// TestCompareRowSets_ColumnMissingInB проверяет колонку,
// пропавшую из новой строки.
func TestCompareRowSets_ColumnMissingInB(t *testing.T) {
	rowsA := []*model.SheetRow{row(2, map[string]string{"Name": "Al", "Age": "30"})}
	rowsB := []*model.SheetRow{row(2, map[string]string{"Name": "Al"})}

	result := CompareRowSets(rowsA, rowsB, "a.xlsx", "b.xlsx")

	if len(result.Differences) != 1 {
		t.Fatalf("различий = %d, ожидалось 1", len(result.Differences))
	}
	d := result.Differences[0]
	if d.DiffType != model.DiffModified || d.ColumnName != "Age" {
		t.Errorf("различие = %+v, ожидалось Modified колонки Age", d)
	}
	if d.OldValue == nil || *d.OldValue != "30" || d.NewValue != nil {
		t.Errorf("значения: old=%v new=%v, ожидались 30/nil", d.OldValue, d.NewValue)
	}
}

// TestCompareRowSets_DeterministicOrder проверяет сортировку
// колоночных различий по имени колонки.
func TestCompareRowSets_DeterministicOrder(t *testing.T) {
	rowsA := []*model.SheetRow{row(2, map[string]string{"C": "1", "A": "1", "B": "1"})}
	rowsB := []*model.SheetRow{row(2, map[string]string{"C": "2", "A": "2", "B": "2"})}

	for i := 0; i < 10; i++ {
		result := CompareRowSets(rowsA, rowsB, "a.xlsx", "b.xlsx")
		if len(result.Differences) != 3 {
			t.Fatalf("различий = %d, ожидалось 3", len(result.Differences))
		}
		for j, want := range []string{"A", "B", "C"} {
			if result.Differences[j].ColumnName != want {
				t.Fatalf("порядок колонок нарушен: [%d] = %q, ожидалась %q",
					j, result.Differences[j].ColumnName, want)
			}
		}
	}
}

// TestCompareRowSets_DuplicateIndex проверяет, что учитывается
// только первое вхождение дублирующегося индекса.
func TestCompareRowSets_DuplicateIndex(t *testing.T) {
	rowsA := []*model.SheetRow{
		row(2, map[string]string{"Name": "first"}),
		row(2, map[string]string{"Name": "second"}),
	}
	rowsB := []*model.SheetRow{row(2, map[string]string{"Name": "first"})}

	result := CompareRowSets(rowsA, rowsB, "a.xlsx", "b.xlsx")

	if len(result.Differences) != 0 {
		t.Fatalf("различий = %d, ожидалось 0 (сравнивается только первое вхождение)", len(result.Differences))
	}
}

// TestCompareRowSetsWholeRow проверяет режим сравнения целых строк:
// различие одно на строку, независимо от числа изменённых колонок.
func TestCompareRowSetsWholeRow(t *testing.T) {
	rowsA := []*model.SheetRow{row(2, map[string]string{"Name": "Al", "Age": "30"})}
	rowsB := []*model.SheetRow{row(2, map[string]string{"Name": "Alice", "Age": "31"})}

	result := compareRowSetsWholeRow(rowsA, rowsB, "f@t1", "f@t2")

	if len(result.Differences) != 1 {
		t.Fatalf("различий = %d, ожидалось 1 (целая строка)", len(result.Differences))
	}
	d := result.Differences[0]
	if d.DiffType != model.DiffModified || d.ColumnName != model.EntireRowColumn {
		t.Errorf("различие = %+v, ожидалось Modified уровня EntireRow", d)
	}
	if d.OldValue == nil || d.NewValue == nil {
		t.Fatal("ожидались сериализованные old/new значения строки")
	}
	if *d.OldValue == *d.NewValue {
		t.Error("сериализованные значения совпали, ожидалось различие")
	}
}

// TestComparisonService_CompareFiles_NotFound проверяет ErrNotFound
// для незарегистрированного файла.
func TestComparisonService_CompareFiles_NotFound(t *testing.T) {
	fileRepo := &mockFileRegistryRepo{
		getByNameFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			return nil, repository.ErrNotFound
		},
	}
	svc := NewComparisonService(&mockRowRepo{}, fileRepo, slog.Default())

	_, err := svc.CompareFiles(context.Background(), "missing.xlsx", "b.xlsx", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ошибка = %v, ожидалась ErrNotFound", err)
	}
}

// TestComparisonService_CompareFiles проверяет загрузку строк обоих
// файлов и сборку результата.
func TestComparisonService_CompareFiles(t *testing.T) {
	fileRepo := &mockFileRegistryRepo{
		getByNameFn: func(_ context.Context, name string) (*model.FileRecord, error) {
			return &model.FileRecord{FileName: name}, nil
		},
	}
	rowRepo := &mockRowRepo{
		listLiveFn: func(_ context.Context, fileName, _ string, _, _ int) ([]*model.SheetRow, error) {
			if fileName == "a.xlsx" {
				return []*model.SheetRow{row(2, map[string]string{"Name": "Al"})}, nil
			}
			return []*model.SheetRow{row(2, map[string]string{"Name": "Alice"})}, nil
		},
	}
	svc := NewComparisonService(rowRepo, fileRepo, slog.Default())

	result, err := svc.CompareFiles(context.Background(), "a.xlsx", "b.xlsx", "")
	if err != nil {
		t.Fatalf("CompareFiles ошибка: %v", err)
	}
	if result.SourceA != "a.xlsx" || result.SourceB != "b.xlsx" {
		t.Errorf("источники = %q/%q, ожидались a.xlsx/b.xlsx", result.SourceA, result.SourceB)
	}
	if result.ID == "" {
		t.Error("ID сравнения пуст")
	}
	if len(result.Differences) != 1 {
		t.Errorf("различий = %d, ожидалось 1", len(result.Differences))
	}
}

// TestSummaryInvariant проверяет инвариант
// modified+added+deleted+unchanged <= total для непересекающихся индексов.
func TestSummaryInvariant(t *testing.T) {
	rowsA := []*model.SheetRow{
		row(2, map[string]string{"Name": "Al"}),
		row(3, map[string]string{"Name": "Bo"}),
		row(5, map[string]string{"Name": "Ed"}),
	}
	rowsB := []*model.SheetRow{
		row(2, map[string]string{"Name": "Alice"}),
		row(3, map[string]string{"Name": "Bo"}),
		row(4, map[string]string{"Name": "Cy"}),
	}

	sum := CompareRowSets(rowsA, rowsB, "a", "b").Summary
	got := sum.ModifiedRows + sum.AddedRows + sum.DeletedRows + sum.UnchangedRows
	if got > sum.TotalRows {
		t.Errorf("сумма счётчиков %d превышает TotalRows %d", got, sum.TotalRows)
	}
	if sum.UnchangedRows != 0 {
		// Затронуты 2, 4, 5; не затронута только строка 3.
		t.Errorf("UnchangedRows = %d, ожидался 0 (total=3, затронуто 3)", sum.UnchangedRows)
	}
}
