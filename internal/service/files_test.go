package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/sheetstore/internal/domain/model"
	"github.com/bigkaa/sheetstore/internal/repository"
	"github.com/bigkaa/sheetstore/internal/storage/filestore"
)

func newTestFileService(t *testing.T, fileRepo *mockFileRegistryRepo) *FileService {
	t.Helper()
	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cache := NewFileCache(16, time.Minute)
	return NewFileService(fileRepo, &mockRowRepo{}, nil, store, cache, slog.Default())
}

// TestFileService_Upload проверяет сохранение и регистрацию файла.
func TestFileService_Upload(t *testing.T) {
	var registered *model.FileRecord
	fileRepo := &mockFileRegistryRepo{
		registerFn: func(_ context.Context, f *model.FileRecord) error {
			f.ID = 1
			f.IsActive = true
			registered = f
			return nil
		},
	}
	svc := newTestFileService(t, fileRepo)

	record, err := svc.Upload(context.Background(),
		strings.NewReader("Name,Age\nAl,30\n"), "report.csv", "text/csv", "tester")
	if err != nil {
		t.Fatalf("Upload ошибка: %v", err)
	}

	if registered == nil {
		t.Fatal("Register не вызван")
	}
	// Логическое имя генерируется сервером и не равно пользовательскому.
	if record.FileName == "" || record.FileName == "report.csv" {
		t.Errorf("FileName = %q, ожидалось сгенерированное имя", record.FileName)
	}
	if record.OriginalName != "report.csv" {
		t.Errorf("OriginalName = %q, ожидался report.csv", record.OriginalName)
	}
	if record.Size != int64(len("Name,Age\nAl,30\n")) {
		t.Errorf("Size = %d", record.Size)
	}
	if record.StoragePath == "" || record.StoragePath == "report.csv" {
		t.Errorf("StoragePath = %q, ожидалось сгенерированное имя", record.StoragePath)
	}

	// Запись попала в кэш под логическим именем.
	if cached, ok := svc.cache.Get(record.FileName); !ok || cached.ID != 1 {
		t.Error("запись не закэширована после загрузки")
	}
}

// TestFileService_Upload_SameOriginalName проверяет, что два файла
// с одинаковым пользовательским именем сосуществуют под разными
// логическими именами.
func TestFileService_Upload_SameOriginalName(t *testing.T) {
	seen := map[string]bool{}
	fileRepo := &mockFileRegistryRepo{
		registerFn: func(_ context.Context, f *model.FileRecord) error {
			if seen[f.FileName] {
				return repository.ErrConflict
			}
			seen[f.FileName] = true
			return nil
		},
	}
	svc := newTestFileService(t, fileRepo)

	first, err := svc.Upload(context.Background(),
		strings.NewReader("a"), "report.csv", "text/csv", "tester")
	if err != nil {
		t.Fatalf("первая загрузка: %v", err)
	}
	second, err := svc.Upload(context.Background(),
		strings.NewReader("b"), "report.csv", "text/csv", "tester")
	if err != nil {
		t.Fatalf("повторная загрузка того же имени: %v", err)
	}

	if first.FileName == second.FileName {
		t.Errorf("логические имена совпадают: %q", first.FileName)
	}
	if first.StoragePath == second.StoragePath {
		t.Errorf("имена хранения совпадают: %q", first.StoragePath)
	}
}

// TestFileService_Upload_BadExtension проверяет отказ
// на неподдерживаемом расширении, включая легаси .xls.
func TestFileService_Upload_BadExtension(t *testing.T) {
	svc := newTestFileService(t, &mockFileRegistryRepo{})

	for _, name := range []string{"report.pdf", "report.xls"} {
		_, err := svc.Upload(context.Background(),
			strings.NewReader("data"), name, "application/octet-stream", "tester")
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: ошибка = %v, ожидалась ErrValidation", name, err)
		}
	}
}

// TestFileService_Upload_Conflict проверяет конфликт имён и удаление
// осиротевшего физического файла.
func TestFileService_Upload_Conflict(t *testing.T) {
	fileRepo := &mockFileRegistryRepo{
		registerFn: func(_ context.Context, _ *model.FileRecord) error {
			return repository.ErrConflict
		},
	}
	svc := newTestFileService(t, fileRepo)

	_, err := svc.Upload(context.Background(),
		strings.NewReader("data"), "report.csv", "text/csv", "tester")
	if !errors.Is(err, ErrConflict) {
		t.Errorf("ошибка = %v, ожидалась ErrConflict", err)
	}
}

// TestFileService_Get_CacheHit проверяет, что повторное чтение
// не ходит в БД.
func TestFileService_Get_CacheHit(t *testing.T) {
	calls := 0
	fileRepo := &mockFileRegistryRepo{
		getByNameFn: func(_ context.Context, name string) (*model.FileRecord, error) {
			calls++
			return &model.FileRecord{ID: 7, FileName: name}, nil
		},
	}
	svc := newTestFileService(t, fileRepo)

	for i := 0; i < 2; i++ {
		record, err := svc.Get(context.Background(), "report.csv")
		if err != nil {
			t.Fatalf("Get ошибка: %v", err)
		}
		if record.ID != 7 {
			t.Errorf("ID = %d, ожидался 7", record.ID)
		}
	}
	if calls != 1 {
		t.Errorf("обращений к БД = %d, ожидалось 1 (второе из кэша)", calls)
	}
}

// TestFileService_Get_NotFound проверяет ErrNotFound.
func TestFileService_Get_NotFound(t *testing.T) {
	svc := newTestFileService(t, &mockFileRegistryRepo{})

	_, err := svc.Get(context.Background(), "nope.csv")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ошибка = %v, ожидалась ErrNotFound", err)
	}
}

// TestFileService_List проверяет пагинацию списка файлов.
func TestFileService_List(t *testing.T) {
	fileRepo := &mockFileRegistryRepo{
		listFn: func(_ context.Context, limit, offset int) ([]*model.FileRecord, error) {
			if limit != defaultPageSize || offset != 0 {
				t.Errorf("limit/offset = %d/%d, ожидались %d/0", limit, offset, defaultPageSize)
			}
			return []*model.FileRecord{{ID: 1, FileName: "a.csv"}}, nil
		},
		countFn: func(_ context.Context) (int, error) {
			return 1, nil
		},
	}
	svc := newTestFileService(t, fileRepo)

	page, err := svc.List(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("List ошибка: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Errorf("страница = %+v, ожидался один файл", page)
	}
}
