package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/sheetstore/internal/domain/model"
)

// RowRepository — интерфейс доступа к таблице sheet_rows.
// Физическое удаление строк не предусмотрено: только soft delete.
type RowRepository interface {
	// Create вставляет новую строку (version = 1).
	Create(ctx context.Context, row *model.SheetRow) error
	// CreateBatch вставляет пачку строк за один проход (ингест листа).
	CreateBatch(ctx context.Context, rows []*model.SheetRow) error
	// GetByID возвращает строку по ID (включая soft-deleted).
	GetByID(ctx context.Context, id int64) (*model.SheetRow, error)
	// ListLive возвращает живые строки файла (+ опционально листа)
	// с пагинацией. limit <= 0 — без ограничения.
	ListLive(ctx context.Context, fileName, sheetName string, limit, offset int) ([]*model.SheetRow, error)
	// CountLive возвращает количество живых строк файла/листа.
	CountLive(ctx context.Context, fileName, sheetName string) (int, error)
	// ListAsOf восстанавливает срез строк файла/листа на момент asOf:
	// created_at <= asOf и (modified_at IS NULL или modified_at <= asOf).
	ListAsOf(ctx context.Context, fileName, sheetName string, asOf time.Time) ([]*model.SheetRow, error)
	// UpdateVersioned записывает новое содержимое строки, если её версия
	// в БД всё ещё равна expectedVersion. Иначе — ErrVersionConflict.
	UpdateVersioned(ctx context.Context, row *model.SheetRow, expectedVersion int) error
	// SoftDelete помечает строку удалённой. Повторное удаление — no-op.
	SoftDelete(ctx context.Context, id int64, actor string) error
	// SoftDeleteSheet помечает удалёнными все живые строки файла+листа.
	// Возвращает количество затронутых строк.
	SoftDeleteSheet(ctx context.Context, fileName, sheetName, actor string) (int, error)
	// SoftDeleteFile помечает удалёнными все живые строки файла (все листы).
	SoftDeleteFile(ctx context.Context, fileName, actor string) (int, error)
	// MaxRowIndex возвращает максимальный row_index живых строк файла/листа
	// (0, если строк нет).
	MaxRowIndex(ctx context.Context, fileName, sheetName string) (int, error)
	// ListModifiedBetween возвращает живые строки файла, изменённые в [from, to].
	ListModifiedBetween(ctx context.Context, fileName, sheetName string, from, to time.Time) ([]*model.SheetRow, error)
	// ListChangeInfo возвращает метаданные изменений всех живых строк файла.
	ListChangeInfo(ctx context.Context, fileName string) ([]*model.RowChangeInfo, error)
	// ListRowVersions возвращает все сохранённые поколения строк,
	// разделяющих (file, sheet, row_index) строки rowID, включая удалённые.
	ListRowVersions(ctx context.Context, rowID int64) ([]*model.SheetRow, error)
}

// rowRepo — реализация RowRepository.
type rowRepo struct {
	db DBTX
}

// NewRowRepository создаёт репозиторий строк.
// db — *pgxpool.Pool или pgx.Tx (для операций внутри транзакции).
func NewRowRepository(db DBTX) RowRepository {
	return &rowRepo{db: db}
}

// rowColumns — общий список колонок для SELECT.
const rowColumns = `id, file_name, sheet_name, row_index, row_data,
	created_at, modified_at, modified_by, is_deleted, version`

func scanRow(row pgx.Row) (*model.SheetRow, error) {
	r := &model.SheetRow{}
	err := row.Scan(
		&r.ID, &r.FileName, &r.SheetName, &r.RowIndex, &r.Columns,
		&r.CreatedAt, &r.ModifiedAt, &r.ModifiedBy, &r.IsDeleted, &r.Version,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func collectRows(rows pgx.Rows) ([]*model.SheetRow, error) {
	defer rows.Close()

	var result []*model.SheetRow
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (r *rowRepo) Create(ctx context.Context, row *model.SheetRow) error {
	query := `
		INSERT INTO sheet_rows (file_name, sheet_name, row_index, row_data, created_at, version)
		VALUES ($1, $2, $3, $4, $5, 1)
		RETURNING id`

	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRow(ctx, query,
		row.FileName, row.SheetName, row.RowIndex, row.Columns, row.CreatedAt,
	).Scan(&row.ID)
	if err != nil {
		return fmt.Errorf("ошибка вставки строки: %w", err)
	}
	row.Version = 1
	return nil
}

func (r *rowRepo) CreateBatch(ctx context.Context, rows []*model.SheetRow) error {
	for _, row := range rows {
		if err := r.Create(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (r *rowRepo) GetByID(ctx context.Context, id int64) (*model.SheetRow, error) {
	query := fmt.Sprintf(`SELECT %s FROM sheet_rows WHERE id = $1`, rowColumns)

	row, err := scanRow(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения строки: %w", err)
	}
	return row, nil
}

func (r *rowRepo) ListLive(ctx context.Context, fileName, sheetName string, limit, offset int) ([]*model.SheetRow, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sheet_rows
		WHERE file_name = $1 AND NOT is_deleted
			AND ($2 = '' OR sheet_name = $2)
		ORDER BY sheet_name, row_index`, rowColumns)
	args := []any{fileName, sheetName}

	if limit > 0 {
		query += ` LIMIT $3 OFFSET $4`
		args = append(args, limit, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения строк: %w", err)
	}
	return collectRows(rows)
}

func (r *rowRepo) CountLive(ctx context.Context, fileName, sheetName string) (int, error) {
	query := `
		SELECT COUNT(*) FROM sheet_rows
		WHERE file_name = $1 AND NOT is_deleted
			AND ($2 = '' OR sheet_name = $2)`

	var count int
	if err := r.db.QueryRow(ctx, query, fileName, sheetName).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта строк: %w", err)
	}
	return count, nil
}

func (r *rowRepo) ListAsOf(ctx context.Context, fileName, sheetName string, asOf time.Time) ([]*model.SheetRow, error) {
	// Реконструкция на момент времени по меткам created_at/modified_at —
	// не настоящий исторический снимок (прошлые версии строк отдельно
	// не хранятся, их помнит только журнал аудита).
	query := fmt.Sprintf(`
		SELECT %s FROM sheet_rows
		WHERE file_name = $1 AND NOT is_deleted
			AND ($2 = '' OR sheet_name = $2)
			AND created_at <= $3
			AND (modified_at IS NULL OR modified_at <= $3)
		ORDER BY sheet_name, row_index`, rowColumns)

	rows, err := r.db.Query(ctx, query, fileName, sheetName, asOf)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения среза строк: %w", err)
	}
	return collectRows(rows)
}

func (r *rowRepo) UpdateVersioned(ctx context.Context, row *model.SheetRow, expectedVersion int) error {
	query := `
		UPDATE sheet_rows
		SET row_data = $3, modified_at = $4, modified_by = $5, version = $6
		WHERE id = $1 AND version = $2 AND NOT is_deleted`

	tag, err := r.db.Exec(ctx, query,
		row.ID, expectedVersion, row.Columns, row.ModifiedAt, row.ModifiedBy, row.Version,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления строки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *rowRepo) SoftDelete(ctx context.Context, id int64, actor string) error {
	// Повторное удаление идемпотентно: строка остаётся удалённой,
	// версия не меняется.
	query := `
		UPDATE sheet_rows
		SET is_deleted = true, modified_at = $2, modified_by = $3
		WHERE id = $1 AND NOT is_deleted`

	tag, err := r.db.Exec(ctx, query, id, time.Now().UTC(), actor)
	if err != nil {
		return fmt.Errorf("ошибка удаления строки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Либо строки нет, либо она уже удалена — различаем.
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sheet_rows WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("ошибка проверки строки: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

func (r *rowRepo) SoftDeleteSheet(ctx context.Context, fileName, sheetName, actor string) (int, error) {
	query := `
		UPDATE sheet_rows
		SET is_deleted = true, modified_at = $3, modified_by = $4
		WHERE file_name = $1 AND sheet_name = $2 AND NOT is_deleted`

	tag, err := r.db.Exec(ctx, query, fileName, sheetName, time.Now().UTC(), actor)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления строк листа: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *rowRepo) SoftDeleteFile(ctx context.Context, fileName, actor string) (int, error) {
	query := `
		UPDATE sheet_rows
		SET is_deleted = true, modified_at = $2, modified_by = $3
		WHERE file_name = $1 AND NOT is_deleted`

	tag, err := r.db.Exec(ctx, query, fileName, time.Now().UTC(), actor)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления строк файла: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *rowRepo) MaxRowIndex(ctx context.Context, fileName, sheetName string) (int, error) {
	query := `
		SELECT COALESCE(MAX(row_index), 0) FROM sheet_rows
		WHERE file_name = $1 AND sheet_name = $2 AND NOT is_deleted`

	var maxIdx int
	if err := r.db.QueryRow(ctx, query, fileName, sheetName).Scan(&maxIdx); err != nil {
		return 0, fmt.Errorf("ошибка получения максимального индекса: %w", err)
	}
	return maxIdx, nil
}

func (r *rowRepo) ListModifiedBetween(ctx context.Context, fileName, sheetName string, from, to time.Time) ([]*model.SheetRow, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sheet_rows
		WHERE file_name = $1 AND NOT is_deleted
			AND ($2 = '' OR sheet_name = $2)
			AND modified_at IS NOT NULL
			AND modified_at >= $3 AND modified_at <= $4
		ORDER BY modified_at`, rowColumns)

	rows, err := r.db.Query(ctx, query, fileName, sheetName, from, to)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения изменённых строк: %w", err)
	}
	return collectRows(rows)
}

func (r *rowRepo) ListChangeInfo(ctx context.Context, fileName string) ([]*model.RowChangeInfo, error) {
	query := `
		SELECT id, row_index, sheet_name, version, created_at, modified_at, modified_by, is_deleted
		FROM sheet_rows
		WHERE file_name = $1 AND NOT is_deleted
		ORDER BY sheet_name, row_index`

	rows, err := r.db.Query(ctx, query, fileName)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории изменений: %w", err)
	}
	defer rows.Close()

	var result []*model.RowChangeInfo
	for rows.Next() {
		info := &model.RowChangeInfo{}
		if err := rows.Scan(
			&info.RowID, &info.RowIndex, &info.SheetName, &info.Version,
			&info.CreatedAt, &info.ModifiedAt, &info.ModifiedBy, &info.IsDeleted,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования истории: %w", err)
		}
		result = append(result, info)
	}
	return result, rows.Err()
}

func (r *rowRepo) ListRowVersions(ctx context.Context, rowID int64) ([]*model.SheetRow, error) {
	// Все поколения, разделяющие (file, sheet, row_index) указанной строки,
	// включая soft-deleted предшественников.
	query := fmt.Sprintf(`
		SELECT %s FROM sheet_rows
		WHERE (file_name, sheet_name, row_index) = (
			SELECT file_name, sheet_name, row_index FROM sheet_rows WHERE id = $1
		)
		ORDER BY created_at, id`, rowColumns)

	rows, err := r.db.Query(ctx, query, rowID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения версий строки: %w", err)
	}
	result, err := collectRows(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
