package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestBuildSheet проверяет превращение сырых ячеек в строки:
// заголовок не попадает в данные, индексы начинаются с 2.
func TestBuildSheet(t *testing.T) {
	raw := [][]string{
		{"Name", "Age"},
		{"Al", "30"},
		{"Bo", "25"},
	}

	sheet := buildSheet("a.xlsx", "Sheet1", raw)

	if len(sheet.rows) != 2 {
		t.Fatalf("строк = %d, ожидалось 2", len(sheet.rows))
	}
	first := sheet.rows[0]
	if first.RowIndex != 2 {
		t.Errorf("RowIndex первой строки данных = %d, ожидался 2", first.RowIndex)
	}
	if first.Columns["Name"] != "Al" || first.Columns["Age"] != "30" {
		t.Errorf("колонки = %v", first.Columns)
	}
	if first.Version != 1 {
		t.Errorf("версия = %d, ожидалась 1", first.Version)
	}
	if sheet.rows[1].RowIndex != 3 {
		t.Errorf("RowIndex второй строки = %d, ожидался 3", sheet.rows[1].RowIndex)
	}
}

// TestBuildSheet_BlankRows проверяет пропуск полностью пустых строк
// с сохранением номеров исходных строк листа.
func TestBuildSheet_BlankRows(t *testing.T) {
	raw := [][]string{
		{"Name"},
		{"Al"},
		{"   "},
		{""},
		{"Bo"},
	}

	sheet := buildSheet("a.xlsx", "Sheet1", raw)

	if len(sheet.rows) != 2 {
		t.Fatalf("строк = %d, ожидалось 2 (пустые пропущены)", len(sheet.rows))
	}
	if sheet.rows[0].RowIndex != 2 || sheet.rows[1].RowIndex != 5 {
		t.Errorf("индексы = %d/%d, ожидались 2/5 (номера строк листа)",
			sheet.rows[0].RowIndex, sheet.rows[1].RowIndex)
	}
}

// TestBuildSheet_BlankHeaders проверяет генерацию имён Column{n}
// для пустых заголовков и ячеек за пределами заголовка.
func TestBuildSheet_BlankHeaders(t *testing.T) {
	raw := [][]string{
		{"Name", "", "Age"},
		{"Al", "x", "30", "extra"},
	}

	sheet := buildSheet("a.xlsx", "Sheet1", raw)

	if len(sheet.rows) != 1 {
		t.Fatalf("строк = %d, ожидалась 1", len(sheet.rows))
	}
	cols := sheet.rows[0].Columns
	if cols["Name"] != "Al" {
		t.Errorf("Name = %q", cols["Name"])
	}
	if cols["Column2"] != "x" {
		t.Errorf("Column2 = %q, ожидался x (пустой заголовок)", cols["Column2"])
	}
	if cols["Age"] != "30" {
		t.Errorf("Age = %q", cols["Age"])
	}
	if cols["Column4"] != "extra" {
		t.Errorf("Column4 = %q, ожидался extra (ячейка за пределами заголовка)", cols["Column4"])
	}
}

// TestBuildSheet_Empty проверяет пустой лист и лист из одного заголовка.
func TestBuildSheet_Empty(t *testing.T) {
	if rows := buildSheet("a.xlsx", "Sheet1", nil).rows; len(rows) != 0 {
		t.Errorf("строк пустого листа = %d, ожидалось 0", len(rows))
	}
	if rows := buildSheet("a.xlsx", "Sheet1", [][]string{{"Name"}}).rows; len(rows) != 0 {
		t.Errorf("строк листа из заголовка = %d, ожидалось 0", len(rows))
	}
}

// TestParseCSV проверяет разбор CSV-файла, включая строки разной длины.
func TestParseCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	content := "Name,Age\nAl,30\nBo,25,extra\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	sheets, err := parseCSV(path, "data.csv")
	if err != nil {
		t.Fatalf("parseCSV ошибка: %v", err)
	}
	if len(sheets) != 1 || sheets[0].name != csvSheetName {
		t.Fatalf("листы = %v, ожидался один %q", sheets, csvSheetName)
	}
	rows := sheets[0].rows
	if len(rows) != 2 {
		t.Fatalf("строк = %d, ожидалось 2", len(rows))
	}
	if rows[1].Columns["Column3"] != "extra" {
		t.Errorf("лишняя ячейка = %q, ожидался extra", rows[1].Columns["Column3"])
	}
}

// TestParseWorkbook_UnsupportedExtension проверяет отказ
// на неподдерживаемом расширении. Легаси .xls не читается excelize
// и отклоняется наравне с прочими форматами.
func TestParseWorkbook_UnsupportedExtension(t *testing.T) {
	for _, path := range []string{"/tmp/data.txt", "/tmp/data.xls"} {
		_, err := parseWorkbook(path, "data")
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: ошибка = %v, ожидалась ErrValidation", path, err)
		}
	}
}

// TestColumnName проверяет выбор имени колонки.
func TestColumnName(t *testing.T) {
	headers := []string{"Name", " ", "Age"}

	tests := []struct {
		idx  int
		want string
	}{
		{0, "Name"},
		{1, "Column2"}, // пробельный заголовок
		{2, "Age"},
		{5, "Column6"}, // за пределами заголовка
	}
	for _, tt := range tests {
		if got := columnName(headers, tt.idx); got != tt.want {
			t.Errorf("columnName(%d) = %q, ожидалось %q", tt.idx, got, tt.want)
		}
	}
}
