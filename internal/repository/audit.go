package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bigkaa/sheetstore/internal/domain/model"
)

// AuditRepository — интерфейс доступа к таблице audit_log.
// Журнал append-only: ни UPDATE, ни DELETE не предусмотрены.
type AuditRepository interface {
	// Append вставляет запись аудита.
	Append(ctx context.Context, e *model.AuditEntry) error
	// ListByFile возвращает записи аудита файла, новые первыми.
	ListByFile(ctx context.Context, fileName string, limit, offset int) ([]*model.AuditEntry, error)
	// ListByRow возвращает записи аудита конкретной строки, старые первыми.
	ListByRow(ctx context.Context, rowID int64) ([]*model.AuditEntry, error)
}

// auditRepo — реализация AuditRepository.
type auditRepo struct {
	db DBTX
}

// NewAuditRepository создаёт репозиторий журнала аудита.
func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Append(ctx context.Context, e *model.AuditEntry) error {
	query := `
		INSERT INTO audit_log (file_name, sheet_name, row_index, row_id, operation,
			old_value, new_value, changed_columns, actor, client_ip, user_agent,
			reason, created_at, success, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRow(ctx, query,
		e.FileName, e.SheetName, e.RowIndex, e.RowID, e.Operation,
		e.OldValue, e.NewValue, e.ChangedColumns, e.Actor, e.ClientIP, e.UserAgent,
		e.Reason, e.CreatedAt, e.Success, e.ErrorMessage,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("ошибка записи аудита: %w", err)
	}
	return nil
}

// auditColumns — общий список колонок для SELECT.
const auditColumns = `id, file_name, sheet_name, row_index, row_id, operation,
	old_value, new_value, changed_columns, actor, client_ip, user_agent,
	reason, created_at, success, error_message`

func (r *auditRepo) ListByFile(ctx context.Context, fileName string, limit, offset int) ([]*model.AuditEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM audit_log
		WHERE file_name = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, auditColumns)

	rows, err := r.db.Query(ctx, query, fileName, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала аудита: %w", err)
	}
	defer rows.Close()

	var result []*model.AuditEntry
	for rows.Next() {
		e := &model.AuditEntry{}
		if err := rows.Scan(
			&e.ID, &e.FileName, &e.SheetName, &e.RowIndex, &e.RowID, &e.Operation,
			&e.OldValue, &e.NewValue, &e.ChangedColumns, &e.Actor, &e.ClientIP, &e.UserAgent,
			&e.Reason, &e.CreatedAt, &e.Success, &e.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи аудита: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *auditRepo) ListByRow(ctx context.Context, rowID int64) ([]*model.AuditEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM audit_log
		WHERE row_id = $1
		ORDER BY created_at, id`, auditColumns)

	rows, err := r.db.Query(ctx, query, rowID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения аудита строки: %w", err)
	}
	defer rows.Close()

	var result []*model.AuditEntry
	for rows.Next() {
		e := &model.AuditEntry{}
		if err := rows.Scan(
			&e.ID, &e.FileName, &e.SheetName, &e.RowIndex, &e.RowID, &e.Operation,
			&e.OldValue, &e.NewValue, &e.ChangedColumns, &e.Actor, &e.ClientIP, &e.UserAgent,
			&e.Reason, &e.CreatedAt, &e.Success, &e.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи аудита: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
