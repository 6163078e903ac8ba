// files.go — бизнес-логика файлового реестра.
// Физический файл сохраняется на диск, метаданные — в file_registry.
// Логическое имя файла генерируется сервером (uuid-суффикс) и не
// совпадает с пользовательским; исходное имя хранится отдельно как
// original_name. Логическое имя адресует файл во всех остальных
// операциях и уникально среди активных файлов.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/sheetstore/internal/domain/model"
	"github.com/bigkaa/sheetstore/internal/repository"
	"github.com/bigkaa/sheetstore/internal/storage/filestore"
)

var uploadedFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ss_uploaded_files_total",
	Help: "Общее количество загруженных файлов.",
})

// allowedExtensions — поддерживаемые расширения табличных файлов.
// Легаси-формат .xls не принимается: excelize читает только OOXML.
var allowedExtensions = map[string]bool{
	".xlsx": true,
	".csv":  true,
}

// FilePage — страница списка файлов.
type FilePage struct {
	Items    []*model.FileRecord `json:"items"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"pageSize"`
}

// FileService — сервис файлового реестра.
type FileService struct {
	fileRepo  repository.FileRegistryRepository
	rowRepo   repository.RowRepository
	txRunner  *repository.TxRunner
	fileStore *filestore.FileStore
	cache     *FileCache
	logger    *slog.Logger
}

// NewFileService создаёт сервис файлового реестра.
func NewFileService(
	fileRepo repository.FileRegistryRepository,
	rowRepo repository.RowRepository,
	txRunner *repository.TxRunner,
	fileStore *filestore.FileStore,
	cache *FileCache,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		fileRepo:  fileRepo,
		rowRepo:   rowRepo,
		txRunner:  txRunner,
		fileStore: fileStore,
		cache:     cache,
		logger:    logger.With(slog.String("component", "file_service")),
	}
}

// Upload сохраняет файл на диск и регистрирует его в реестре.
func (s *FileService) Upload(ctx context.Context, reader io.Reader, originalName, contentType, uploadedBy string) (*model.FileRecord, error) {
	if originalName == "" {
		return nil, fmt.Errorf("%w: имя файла обязательно", ErrValidation)
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w: неподдерживаемое расширение %q (допустимы .xlsx, .csv)", ErrValidation, ext)
	}

	saved, err := s.fileStore.SaveFile(reader, originalName)
	if err != nil {
		return nil, fmt.Errorf("сохранение файла: %w", err)
	}

	// Логическое имя генерируется сервером: два файла с одинаковым
	// пользовательским именем сосуществуют под разными логическими.
	record := &model.FileRecord{
		FileName:     saved.StorageName,
		OriginalName: originalName,
		StoragePath:  saved.StorageName,
		ContentType:  contentType,
		Size:         saved.Size,
		UploadedBy:   uploadedBy,
		UploadedAt:   time.Now().UTC(),
	}

	if err := s.fileRepo.Register(ctx, record); err != nil {
		// Осиротевший физический файл не оставляем.
		if rmErr := s.fileStore.Remove(saved.StorageName); rmErr != nil {
			s.logger.Warn("Не удалось удалить файл после ошибки регистрации",
				slog.String("storage_path", saved.StorageName),
				slog.String("error", rmErr.Error()),
			)
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: файл %q уже зарегистрирован", ErrConflict, record.FileName)
		}
		return nil, err
	}

	s.cache.Set(record.FileName, record)
	uploadedFilesTotal.Inc()
	s.logger.Info("Файл загружен",
		slog.String("file", record.FileName),
		slog.Int64("size", record.Size),
		slog.String("uploaded_by", uploadedBy),
	)
	return record, nil
}

// Get возвращает активный файл по логическому имени (сначала из кэша).
func (s *FileService) Get(ctx context.Context, fileName string) (*model.FileRecord, error) {
	if record, ok := s.cache.Get(fileName); ok {
		return record, nil
	}

	record, err := s.fileRepo.GetByName(ctx, fileName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %q", ErrNotFound, fileName)
		}
		return nil, fmt.Errorf("получение файла: %w", err)
	}

	s.cache.Set(fileName, record)
	return record, nil
}

// List возвращает страницу активных файлов.
func (s *FileService) List(ctx context.Context, page, pageSize int) (*FilePage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	items, err := s.fileRepo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("получение списка файлов: %w", err)
	}
	total, err := s.fileRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("подсчёт файлов: %w", err)
	}

	return &FilePage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// Delete деактивирует файл и каскадно помечает удалёнными все его
// строки. Оба шага — одна транзакция; физический файл удаляется с
// диска после коммита.
func (s *FileService) Delete(ctx context.Context, fileName, actor string) error {
	record, err := s.fileRepo.GetByName(ctx, fileName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: файл %q", ErrNotFound, fileName)
		}
		return fmt.Errorf("получение файла: %w", err)
	}

	var deletedRows int
	err = s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := repository.NewFileRegistryRepository(tx).Deactivate(ctx, fileName); err != nil {
			return fmt.Errorf("деактивация файла: %w", err)
		}
		n, err := repository.NewRowRepository(tx).SoftDeleteFile(ctx, fileName, actor)
		if err != nil {
			return fmt.Errorf("удаление строк файла: %w", err)
		}
		deletedRows = n
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: файл %q", ErrNotFound, fileName)
		}
		return err
	}

	s.cache.Delete(fileName)
	if err := s.fileStore.Remove(record.StoragePath); err != nil {
		// Запись уже деактивирована — потерю физического файла только логируем.
		s.logger.Warn("Не удалось удалить физический файл",
			slog.String("storage_path", record.StoragePath),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("Файл удалён",
		slog.String("file", fileName),
		slog.Int("deleted_rows", deletedRows),
		slog.String("actor", actor),
	)
	return nil
}
