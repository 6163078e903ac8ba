package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/sheetstore/internal/domain/model"
)

// ETLRepository — интерфейс доступа к таблице etl_executions.
// Долговременные статусы запусков внешних ETL-пакетов.
type ETLRepository interface {
	// Create сохраняет запись о запуске (статус RUNNING).
	Create(ctx context.Context, e *model.ETLExecution) error
	// GetByID возвращает запуск по UUID.
	GetByID(ctx context.Context, id string) (*model.ETLExecution, error)
	// SetStatus переводит запуск в терминальный статус.
	// Терминальный статус не перезаписывается (last writer — нет:
	// CANCELLED и SUCCEEDED/FAILED не конфликтуют).
	SetStatus(ctx context.Context, id, status, message string) error
	// List возвращает запуски, новые первыми.
	List(ctx context.Context, limit, offset int) ([]*model.ETLExecution, error)
}

// etlRepo — реализация ETLRepository.
type etlRepo struct {
	db DBTX
}

// NewETLRepository создаёт репозиторий запусков ETL.
func NewETLRepository(db DBTX) ETLRepository {
	return &etlRepo{db: db}
}

func (r *etlRepo) Create(ctx context.Context, e *model.ETLExecution) error {
	query := `
		INSERT INTO etl_executions (id, package_name, status, started_at, message)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, e.ID, e.PackageName, e.Status, e.StartedAt, e.Message)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: запуск с таким ID уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка записи запуска ETL: %w", err)
	}
	return nil
}

func (r *etlRepo) GetByID(ctx context.Context, id string) (*model.ETLExecution, error) {
	query := `
		SELECT id, package_name, status, started_at, finished_at, message
		FROM etl_executions
		WHERE id = $1`

	e := &model.ETLExecution{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.PackageName, &e.Status, &e.StartedAt, &e.FinishedAt, &e.Message,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения запуска ETL: %w", err)
	}
	return e, nil
}

func (r *etlRepo) SetStatus(ctx context.Context, id, status, message string) error {
	// Переход возможен только из RUNNING: завершившийся или отменённый
	// запуск уже в терминальном статусе.
	query := `
		UPDATE etl_executions
		SET status = $2, message = $3, finished_at = now()
		WHERE id = $1 AND status = $4`

	tag, err := r.db.Exec(ctx, query, id, status, message, model.ETLStatusRunning)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса ETL: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *etlRepo) List(ctx context.Context, limit, offset int) ([]*model.ETLExecution, error) {
	query := `
		SELECT id, package_name, status, started_at, finished_at, message
		FROM etl_executions
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка запусков ETL: %w", err)
	}
	defer rows.Close()

	var result []*model.ETLExecution
	for rows.Next() {
		e := &model.ETLExecution{}
		if err := rows.Scan(
			&e.ID, &e.PackageName, &e.Status, &e.StartedAt, &e.FinishedAt, &e.Message,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования запуска ETL: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
