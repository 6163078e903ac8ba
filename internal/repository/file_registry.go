package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/sheetstore/internal/domain/model"
)

// FileRegistryRepository — интерфейс CRUD для таблицы file_registry.
type FileRegistryRepository interface {
	// Register создаёт запись файла в реестре.
	Register(ctx context.Context, f *model.FileRecord) error
	// GetByName возвращает активный файл по логическому имени.
	GetByName(ctx context.Context, fileName string) (*model.FileRecord, error)
	// List возвращает активные файлы с пагинацией.
	List(ctx context.Context, limit, offset int) ([]*model.FileRecord, error)
	// Count возвращает количество активных файлов.
	Count(ctx context.Context) (int, error)
	// Deactivate снимает флаг is_active. Запись реестра не удаляется.
	Deactivate(ctx context.Context, fileName string) error
}

// fileRegistryRepo — реализация FileRegistryRepository.
type fileRegistryRepo struct {
	db DBTX
}

// NewFileRegistryRepository создаёт репозиторий файлового реестра.
func NewFileRegistryRepository(db DBTX) FileRegistryRepository {
	return &fileRegistryRepo{db: db}
}

func (r *fileRegistryRepo) Register(ctx context.Context, f *model.FileRecord) error {
	query := `
		INSERT INTO file_registry (file_name, original_name, storage_path, content_type,
			size, uploaded_by, uploaded_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		f.FileName, f.OriginalName, f.StoragePath, f.ContentType,
		f.Size, f.UploadedBy, f.UploadedAt,
	).Scan(&f.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл с таким именем уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка регистрации файла: %w", err)
	}
	f.IsActive = true
	return nil
}

func (r *fileRegistryRepo) GetByName(ctx context.Context, fileName string) (*model.FileRecord, error) {
	query := `
		SELECT id, file_name, original_name, storage_path, content_type,
			size, uploaded_by, uploaded_at, is_active
		FROM file_registry
		WHERE file_name = $1 AND is_active`

	f := &model.FileRecord{}
	err := r.db.QueryRow(ctx, query, fileName).Scan(
		&f.ID, &f.FileName, &f.OriginalName, &f.StoragePath, &f.ContentType,
		&f.Size, &f.UploadedBy, &f.UploadedAt, &f.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *fileRegistryRepo) List(ctx context.Context, limit, offset int) ([]*model.FileRecord, error) {
	query := `
		SELECT id, file_name, original_name, storage_path, content_type,
			size, uploaded_by, uploaded_at, is_active
		FROM file_registry
		WHERE is_active
		ORDER BY uploaded_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		f := &model.FileRecord{}
		if err := rows.Scan(
			&f.ID, &f.FileName, &f.OriginalName, &f.StoragePath, &f.ContentType,
			&f.Size, &f.UploadedBy, &f.UploadedAt, &f.IsActive,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRegistryRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM file_registry WHERE is_active`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return count, nil
}

func (r *fileRegistryRepo) Deactivate(ctx context.Context, fileName string) error {
	query := `
		UPDATE file_registry
		SET is_active = false
		WHERE file_name = $1 AND is_active`

	tag, err := r.db.Exec(ctx, query, fileName)
	if err != nil {
		return fmt.Errorf("ошибка деактивации файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
